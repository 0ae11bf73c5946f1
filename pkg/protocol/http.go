package protocol

import (
	echo "github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const (
	httpControllerTag = `group:"http.controller"`
	httpMiddlewareTag = `group:"http.middleware"`
)

type HttpRouter = *echo.Echo

// Help resolve http handler. It's needed for providing router into handler
type HttpResolvable interface {
	Resolve(HttpRouter) error
}

func AsHttpController(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(HttpResolvable)),
		fx.ResultTags(httpControllerTag),
	)
}

// HttpMiddleware is applied to the router before any controller resolves.
type HttpMiddleware interface {
	Middleware() echo.MiddlewareFunc
}

func AsHttpMiddleware(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(HttpMiddleware)),
		fx.ResultTags(httpMiddlewareTag),
	)
}
