package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/shaiso/flowforge/internal/domain"
	"github.com/shaiso/flowforge/internal/engine"
	"github.com/shaiso/flowforge/internal/flowio"
	"github.com/shaiso/flowforge/internal/nodes"
	"github.com/shaiso/flowforge/internal/orchestrator"
)

// maxImportSize — предельный размер импортируемого документа.
const maxImportSize = 4 << 20

// ListFlows возвращает список всех flows.
// GET /api/v1/flows?status=...
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.flows.List(r.Context())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	status := domain.FlowStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		BadRequest(w, "invalid status")
		return
	}

	result := make([]*domain.Flow, 0, len(flows))
	for _, f := range flows {
		if status == "" || f.Status == status {
			result = append(result, f)
		}
	}

	List(w, result, len(result))
}

// CreateFlow создаёт новый flow.
// POST /api/v1/flows
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.Status != "" && !req.Status.IsValid() {
		BadRequest(w, "invalid status")
		return
	}

	flow := req.ToDomain()
	if err := h.flows.Create(r.Context(), flow); HandleStoreError(w, h.logger, err, "") {
		return
	}

	Created(w, flow)
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, flow)
}

// UpdateFlow обновляет flow.
// PUT /api/v1/flows/{id}
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	var req UpdateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		BadRequest(w, "invalid status")
		return
	}
	if req.Name != nil && *req.Name == "" {
		BadRequest(w, "name must not be empty")
		return
	}

	flow, err := h.flows.Update(r.Context(), r.PathValue("id"), req.ToPatch())
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, flow)
}

// DeleteFlow удаляет flow вместе с его историей run.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	err := h.flows.Delete(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	NoContent(w)
}

// DuplicateFlow создаёт копию flow в статусе draft.
// POST /api/v1/flows/{id}/duplicate
func (h *Handler) DuplicateFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flows.Duplicate(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	Created(w, flow)
}

// PreviewFlow возвращает порядок выполнения без запуска.
// GET /api/v1/flows/{id}/preview
func (h *Handler) PreviewFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	preview, err := orchestrator.Preview(flow)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	Success(w, preview)
}

// ValidateFlow проверяет граф flow.
// POST /api/v1/flows/{id}/validate?strict=true
//
// Невалидный граф — не ошибка запроса: ответ 200 с valid=false.
func (h *Handler) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	strict, _ := strconv.ParseBool(r.URL.Query().Get("strict"))
	Success(w, ValidationFromError(h.validate(flow, strict)))
}

func (h *Handler) validate(flow *domain.Flow, strict bool) error {
	registry := h.controller.Registry()
	if err := engine.Validate(flow, registry); err != nil {
		return err
	}
	if strict {
		return nodes.ValidateFlow(registry, flow)
	}
	return nil
}

// ExportFlow выгружает flow в JSON или YAML.
// GET /api/v1/flows/{id}/export?format=json|yaml
func (h *Handler) ExportFlow(w http.ResponseWriter, r *http.Request) {
	format, err := flowio.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	flow, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	data, err := flowio.Export(flow, format)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	contentType, ext := "application/json", "json"
	if format == flowio.FormatYAML {
		contentType, ext = "application/yaml", "yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", flow.ID+"."+ext))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImportFlow создаёт flow из экспортированного документа.
// POST /api/v1/flows/import?format=json|yaml
func (h *Handler) ImportFlow(w http.ResponseWriter, r *http.Request) {
	format := flowio.FormatAuto
	if name := r.URL.Query().Get("format"); name != "" {
		var err error
		if format, err = flowio.ParseFormat(name); err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	registry := h.controller.Registry()
	flow, err := flowio.Import(data, flowio.ImportOptions{
		Format: format,
		Validate: func(f *domain.Flow) error {
			return engine.Validate(f, registry)
		},
	})
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	if err := h.flows.Create(r.Context(), flow); HandleStoreError(w, h.logger, err, "") {
		return
	}

	Created(w, flow)
}

// ListNodeTypes возвращает определения зарегистрированных типов узлов.
// GET /api/v1/node-types
func (h *Handler) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	defs := h.controller.Registry().Definitions()
	List(w, defs, len(defs))
}

// GetStats возвращает сводную статистику.
// GET /api/v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	flows, err := h.flows.List(r.Context())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}
	runs, err := h.runs.List(r.Context())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	flowVals := make([]domain.Flow, len(flows))
	for i, f := range flows {
		flowVals[i] = *f
	}
	runVals := make([]domain.Run, len(runs))
	for i, run := range runs {
		runVals[i] = *run
	}

	Success(w, orchestrator.Stats(flowVals, runVals, h.now()))
}
