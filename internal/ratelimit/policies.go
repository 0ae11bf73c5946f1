package ratelimit

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/romashorodok/signaling-platform/pkg/service"
	"go.uber.org/fx"
)

const (
	adminRequestsPerWindow = 100
	adminWindow            = 15 * time.Minute

	roomCreatesPerWindow = 10
	roomCreateWindow     = time.Hour

	signalEventsPerWindow = 50
	signalEventWindow     = 60 * time.Second

	staleSweepInterval = 10 * time.Minute
)

// Policies bundles the three process-wide limiters: the admin HTTP
// surface, room creation, and per-event signaling traffic.
type Policies struct {
	adminAPI   *Limiter
	roomCreate *Limiter
	events     *Limiter
}

func (p *Policies) AllowAdminRequest(addr string) bool {
	return p.adminAPI.Allow(addr)
}

func (p *Policies) AllowRoomCreate(addr string) bool {
	return p.roomCreate.Allow(addr)
}

// AllowSignalEvent is keyed by (source address, event kind) so one noisy
// event type cannot starve the rest of the session.
func (p *Policies) AllowSignalEvent(addr, event string) bool {
	return p.events.Allow(addr + "|" + event)
}

func (p *Policies) SweepTasks() []service.SweepTask {
	return []service.SweepTask{{
		Name:     "ratelimit.stale-windows",
		Interval: staleSweepInterval,
		Run: func() error {
			p.adminAPI.SweepStale()
			p.roomCreate.SweepStale()
			p.events.SweepStale()
			return nil
		},
	}}
}

// Middleware rejects admin API requests over the per-address cap. The
// websocket upgrade path is exempt: signaling traffic has its own rule.
func (p *Policies) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.IsWebSocket() {
				return next(c)
			}
			if !p.AllowAdminRequest(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"type":    "rate-limited",
					"message": "too many requests",
				})
			}
			return next(c)
		}
	}
}

func NewPolicies(clock Clock) *Policies {
	return &Policies{
		adminAPI:   NewLimiter(clock, Rule{Limit: adminRequestsPerWindow, Window: adminWindow}),
		roomCreate: NewLimiter(clock, Rule{Limit: roomCreatesPerWindow, Window: roomCreateWindow}),
		events:     NewLimiter(clock, Rule{Limit: signalEventsPerWindow, Window: signalEventWindow}),
	}
}

type policies_Params struct {
	fx.In
}

func NewDefaultPolicies(policies_Params) *Policies {
	return NewPolicies(RealClock{})
}
