package room

import (
	"encoding/json"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/romashorodok/signaling-platform/internal/peer"
	"github.com/romashorodok/signaling-platform/internal/ratelimit"
	globalprotocol "github.com/romashorodok/signaling-platform/pkg/protocol"
	"go.uber.org/fx"
)

type roomController struct {
	logger      *slog.Logger
	roomService *RoomService
	tracker     *peer.TrackerService
	policies    *ratelimit.Policies
}

type roomCreateRequest struct {
	CreatedBy        string `json:"createdBy,omitempty"`
	Capacity         int    `json:"capacity,omitempty"`
	Password         string `json:"password,omitempty"`
	AllowScreenShare *bool  `json:"allowScreenShare,omitempty"`
	AllowChat        *bool  `json:"allowChat,omitempty"`
}

type errorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (ctrl *roomController) RoomControllerRoomCreate(ctx echo.Context) error {
	if !ctrl.policies.AllowRoomCreate(ctx.RealIP()) {
		return ctx.JSON(http.StatusTooManyRequests, errorResponse{
			Type:    "rate-limited",
			Message: "room creation limit reached",
		})
	}

	var request roomCreateRequest
	if err := json.NewDecoder(ctx.Request().Body).Decode(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{
			Type:    "bad-payload",
			Message: "invalid room create request",
		})
	}

	option := &CreateRoomOption{
		CreatedBy:        request.CreatedBy,
		Capacity:         request.Capacity,
		Password:         request.Password,
		AllowScreenShare: true,
		AllowChat:        true,
	}
	if request.AllowScreenShare != nil {
		option.AllowScreenShare = *request.AllowScreenShare
	}
	if request.AllowChat != nil {
		option.AllowChat = *request.AllowChat
	}

	r := ctrl.roomService.CreateRoom(option)
	snapshot, _ := ctrl.roomService.GetRoom(r.ID)
	return ctx.JSON(http.StatusCreated, snapshot)
}

func (ctrl *roomController) RoomControllerRoomGet(ctx echo.Context) error {
	snapshot, exist := ctrl.roomService.GetRoom(ctx.Param("roomID"))
	if !exist {
		return ctx.JSON(http.StatusNotFound, errorResponse{
			Type:    "room-not-found",
			Message: "room not found",
		})
	}
	return ctx.JSON(http.StatusOK, snapshot)
}

func (ctrl *roomController) RoomControllerRoomConnections(ctx echo.Context) error {
	snapshot, exist := ctrl.tracker.RoomSnapshot(ctx.Param("roomID"))
	if !exist {
		return ctx.JSON(http.StatusNotFound, errorResponse{
			Type:    "room-not-found",
			Message: "no tracked connections for room",
		})
	}
	return ctx.JSON(http.StatusOK, snapshot)
}

type statsResponse struct {
	RegisteredRooms int        `json:"registeredRooms"`
	Tracker         peer.Stats `json:"tracker"`
}

func (ctrl *roomController) RoomControllerStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, statsResponse{
		RegisteredRooms: ctrl.roomService.RoomCount(),
		Tracker:         ctrl.tracker.Stats(),
	})
}

func (ctrl *roomController) RoomControllerICEServers(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctrl.tracker.ICEServers())
}

func (ctrl *roomController) Resolve(router *echo.Echo) error {
	router.POST("/rooms", ctrl.RoomControllerRoomCreate)
	router.GET("/rooms/:roomID", ctrl.RoomControllerRoomGet)
	router.GET("/rooms/:roomID/connections", ctrl.RoomControllerRoomConnections)
	router.GET("/stats", ctrl.RoomControllerStats)
	router.GET("/ice-servers", ctrl.RoomControllerICEServers)
	return nil
}

var _ globalprotocol.HttpResolvable = (*roomController)(nil)

type newRoomController_Params struct {
	fx.In

	Logger      *slog.Logger
	RoomService *RoomService
	Tracker     *peer.TrackerService
	Policies    *ratelimit.Policies
}

func NewRoomController(params newRoomController_Params) *roomController {
	return &roomController{
		logger:      params.Logger,
		roomService: params.RoomService,
		tracker:     params.Tracker,
		policies:    params.Policies,
	}
}
