package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/lumi-ai/lumi/pkg/httputil"
	"github.com/lumi-ai/lumi/pkg/plugins"
)

// MessageRequest is the body of POST /api/v1/messages.
type MessageRequest struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// MessageResponse carries the transformed message.
type MessageResponse struct {
	Message string `json:"message"`
}

// PluginList is the body of GET /api/v1/plugins.
type PluginList struct {
	Plugins []plugins.Info `json:"plugins"`
	Count   int            `json:"count"`
}

func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	infos := s.plugins.PluginInfo()
	httputil.WriteSuccess(w, PluginList{Plugins: infos, Count: len(infos)})
}

func (s *Server) getPlugin(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	for _, info := range s.plugins.PluginInfo() {
		if info.Name == name {
			httputil.WriteSuccess(w, info)
			return
		}
	}
	httputil.WriteNotFoundError(w, "plugin not found: "+name)
}

func (s *Server) enablePlugin(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	if err := s.plugins.EnablePlugin(r.Context(), name); err != nil {
		s.writePluginError(w, name, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) disablePlugin(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	if err := s.plugins.DisablePlugin(r.Context(), name); err != nil {
		s.writePluginError(w, name, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	var settings map[string]any
	if !httputil.ParseJSONOrError(w, r, &settings) {
		return
	}
	if settings == nil {
		httputil.WriteBadRequest(w, "settings must be a JSON object")
		return
	}

	if err := s.plugins.UpdatePluginConfig(r.Context(), name, settings); err != nil {
		s.writePluginError(w, name, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) syncRegistry(w http.ResponseWriter, r *http.Request) {
	if err := s.plugins.SyncRegistry(r.Context()); err != nil {
		s.log.WithError(err).Error("Registry sync failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) dispatchMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	out := s.plugins.DispatchMessageReceived(r.Context(), req.Message, plugins.ParseSource(req.Source))
	httputil.WriteSuccess(w, MessageResponse{Message: out})
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(httputil.ParseQueryString(r, "refresh", "false"))
	if refresh {
		httputil.WriteSuccess(w, s.dashboard.Collect(r.Context()))
		return
	}
	httputil.WriteSuccess(w, s.dashboard.Snapshot())
}

// writePluginError maps manager errors to status codes.
func (s *Server) writePluginError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, plugins.ErrPluginNotFound):
		httputil.WriteNotFoundError(w, "plugin not found: "+name)
	case errors.Is(err, plugins.ErrInvalidConfig):
		httputil.WriteBadRequest(w, err.Error())
	default:
		s.log.WithField("plugin", name).WithError(err).Error("Plugin operation failed")
		httputil.WriteInternalError(w, err)
	}
}
