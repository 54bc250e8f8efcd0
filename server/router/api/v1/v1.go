package v1

import (
	"github.com/labstack/echo/v5"

	"github.com/openseek/openseek/engine"
	"github.com/openseek/openseek/plugin/websearch"
	"github.com/openseek/openseek/server/profile"
	"github.com/openseek/openseek/store"
)

// APIV1Service wires the HTTP surface to the store and the turn engine.
type APIV1Service struct {
	Profile  *profile.Profile
	Store    *store.Store
	Engine   *engine.Engine
	Searcher *websearch.Client
}

func NewAPIV1Service(p *profile.Profile, s *store.Store, eng *engine.Engine, searcher *websearch.Client) *APIV1Service {
	return &APIV1Service{
		Profile:  p,
		Store:    s,
		Engine:   eng,
		Searcher: searcher,
	}
}

// Register mounts all routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	s.registerChatRoutes(e)
	s.registerSearchRoutes(e)
	s.registerFeedbackRoutes(e)
}
