package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		CORS(""),
	)

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.CreateFlow)))
	mux.Handle("POST /api/v1/flows/import", chain(http.HandlerFunc(h.ImportFlow)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("PUT /api/v1/flows/{id}", chain(http.HandlerFunc(h.UpdateFlow)))
	mux.Handle("DELETE /api/v1/flows/{id}", chain(http.HandlerFunc(h.DeleteFlow)))
	mux.Handle("POST /api/v1/flows/{id}/duplicate", chain(http.HandlerFunc(h.DuplicateFlow)))
	mux.Handle("GET /api/v1/flows/{id}/preview", chain(http.HandlerFunc(h.PreviewFlow)))
	mux.Handle("POST /api/v1/flows/{id}/validate", chain(http.HandlerFunc(h.ValidateFlow)))
	mux.Handle("GET /api/v1/flows/{id}/export", chain(http.HandlerFunc(h.ExportFlow)))

	// Runs
	mux.Handle("POST /api/v1/flows/{id}/run", chain(http.HandlerFunc(h.RunFlow)))
	mux.Handle("GET /api/v1/flows/{id}/runs", chain(http.HandlerFunc(h.ListFlowRuns)))
	mux.Handle("POST /api/v1/flows/{id}/events", chain(http.HandlerFunc(h.PublishFlowEvent)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/stream", chain(http.HandlerFunc(h.StreamRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("DELETE /api/v1/runs/{id}", chain(http.HandlerFunc(h.DeleteRun)))
	mux.Handle("GET /api/v1/runs/{id}/progress", chain(http.HandlerFunc(h.GetRunProgress)))
	mux.Handle("POST /api/v1/runs/{id}/cancel", chain(http.HandlerFunc(h.CancelRun)))

	// Catalog & dashboard
	mux.Handle("GET /api/v1/node-types", chain(http.HandlerFunc(h.ListNodeTypes)))
	mux.Handle("GET /api/v1/stats", chain(http.HandlerFunc(h.GetStats)))

	mux.Handle("OPTIONS /api/v1/", chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	// Webhooks
	mux.Handle("/webhook/{path...}", chain(http.HandlerFunc(h.Webhook)))
}
