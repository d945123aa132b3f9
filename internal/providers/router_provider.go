package providers

import (
	"complywatch/internal/structures"
	"net/http"
)

type Middleware func(http.Handler) http.Handler

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	// With returns a router that registers into the same route table but
	// wraps every handler with mw.
	With(mw Middleware) RouterProviderInterface
	GetRoutes() []structures.Route
}

type routeTable struct {
	routes []structures.Route
}

type RouterProvider struct {
	table       *routeTable
	middlewares []Middleware
}

func (rp *RouterProvider) add(method, url string, handler http.Handler) {
	for i := len(rp.middlewares) - 1; i >= 0; i-- {
		handler = rp.middlewares[i](handler)
	}
	rp.table.routes = append(rp.table.routes, structures.Route{
		Url:     url,
		Handler: methodHandler(method, handler),
	})
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.add(http.MethodGet, url, handler)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.add(http.MethodPost, url, handler)
}

func (rp *RouterProvider) With(mw Middleware) RouterProviderInterface {
	chain := make([]Middleware, 0, len(rp.middlewares)+1)
	chain = append(chain, rp.middlewares...)
	return &RouterProvider{table: rp.table, middlewares: append(chain, mw)}
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.table.routes
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{table: &routeTable{}}
}

func methodHandler(method string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
