package handler

import (
	"net/http"
	"sync"

	"siglo-backend/bootstrap"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"
)

var (
	once       sync.Once
	appHandler http.HandlerFunc
	initErr    error
)

// Handler adapts the Fiber app to the platform's net/http entry point. The
// app is built on the first invocation and reused by warm instances.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		app, err := bootstrap.New()
		if err != nil {
			initErr = err
			log.Error().Err(err).Msg("serverless init failed")
			return
		}
		appHandler = adaptor.FiberApp(app)
	})
	if initErr != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	r.RequestURI = r.URL.String()
	appHandler(w, r)
}
