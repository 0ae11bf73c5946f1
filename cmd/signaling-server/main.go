package main

import (
	"github.com/romashorodok/signaling-platform/internal/peer"
	"github.com/romashorodok/signaling-platform/internal/ratelimit"
	"github.com/romashorodok/signaling-platform/internal/room"
	"github.com/romashorodok/signaling-platform/internal/signaling"
	globalprotocol "github.com/romashorodok/signaling-platform/pkg/protocol"
	"github.com/romashorodok/signaling-platform/pkg/service"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fx.Provide(
			room.NewRoomService,
			func(s *room.RoomService) globalprotocol.MediaStateSource { return s },

			peer.NewTrackerService,
			ratelimit.NewDefaultPolicies,
			signaling.NewDispatcher,

			globalprotocol.AsHttpController(room.NewRoomController),
			globalprotocol.AsHttpController(signaling.NewSignalingController),
			globalprotocol.AsHttpMiddleware(func(p *ratelimit.Policies) *ratelimit.Policies { return p }),

			service.AsSweepTaskSource(func(s *room.RoomService) *room.RoomService { return s }),
			service.AsSweepTaskSource(func(s *peer.TrackerService) *peer.TrackerService { return s }),
			service.AsSweepTaskSource(func(p *ratelimit.Policies) *ratelimit.Policies { return p }),
		),

		service.LoggerModule,
		service.SweeperModule,
		service.HttpModule,
	).Run()
}
