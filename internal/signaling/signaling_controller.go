package signaling

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	globalprotocol "github.com/romashorodok/signaling-platform/pkg/protocol"
	"github.com/romashorodok/signaling-platform/pkg/wsutils"
	"go.uber.org/fx"
)

type signalingController struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
}

// SignalingControllerSession upgrades the connection and pumps inbound
// events into the dispatcher. One read loop per connection keeps a
// session's events in arrival order; sessions run concurrently.
func (ctrl *signalingController) SignalingControllerSession(ctx echo.Context) error {
	conn, err := ctrl.upgrader.Upgrade(ctx.Response().Writer, ctx.Request(), nil)
	if err != nil {
		ctrl.logger.Error(fmt.Sprintf("Unable upgrade request %+v", ctx.Request()))
		return err
	}

	w := wsutils.NewThreadSafeWriter(conn)
	defer w.Close()

	session := NewSession(uuid.NewString(), ctx.RealIP(), w)
	defer ctrl.dispatcher.Disconnect(session)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsutils.PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := w.Ping(); err != nil {
					return
				}
			}
		}
	}()

	message := &websocketMessage{}
	for {
		if err := w.ReadJSON(message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ctrl.logger.Debug("session read failed",
					slog.String("participant", session.ID()),
					slog.String("err", err.Error()),
				)
			}
			return nil
		}

		ctrl.dispatcher.HandleMessage(session, *message)
	}
}

func (ctrl *signalingController) Resolve(router *echo.Echo) error {
	router.GET("/ws", ctrl.SignalingControllerSession)
	return nil
}

var _ globalprotocol.HttpResolvable = (*signalingController)(nil)

type newSignalingController_Params struct {
	fx.In

	Logger     *slog.Logger
	Dispatcher *Dispatcher
}

func NewSignalingController(params newSignalingController_Params) *signalingController {
	return &signalingController{
		logger:     params.Logger,
		dispatcher: params.Dispatcher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}
