package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/ledger"
	"github.com/harmonia-labs/harmonia-go/internal/ontology"
	"github.com/harmonia-labs/harmonia-go/internal/platform/objectstore"
	"github.com/harmonia-labs/harmonia-go/internal/query"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
	"github.com/harmonia-labs/harmonia-go/internal/resolver"
	"github.com/harmonia-labs/harmonia-go/internal/schemas"
	"github.com/harmonia-labs/harmonia-go/internal/service/runs"
)

type harmoniserAPI struct {
	logger    *slog.Logger
	runs      *runs.Service
	ledger    *ledger.Ledger
	registry  *schemas.Registry
	resolver  *resolver.Resolver
	index     *ontology.Index
	store     objectstore.Store
	storeCfg  objectstore.Config
	submitter query.Submitter
}

func newHarmoniserAPI(logger *slog.Logger, runSvc *runs.Service, led *ledger.Ledger, registry *schemas.Registry, res *resolver.Resolver, index *ontology.Index, store objectstore.Store, storeCfg objectstore.Config, submitter query.Submitter) *harmoniserAPI {
	return &harmoniserAPI{
		logger:    logger,
		runs:      runSvc,
		ledger:    led,
		registry:  registry,
		resolver:  res,
		index:     index,
		store:     store,
		storeCfg:  storeCfg,
		submitter: submitter,
	}
}

func (api *harmoniserAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /runs", api.handleSubmitRun)
	mux.HandleFunc("GET /runs", api.handleListRuns)
	mux.HandleFunc("GET /runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("POST /runs/{run_id}/rerun", api.handleRerun)
	mux.HandleFunc("POST /runs/{run_id}/cancel", api.handleCancel)
	mux.HandleFunc("GET /runs/{run_id}/decisions", api.handleListDecisions)
	mux.HandleFunc("GET /runs/{run_id}/mappings", api.handleListMappings)
	mux.HandleFunc("POST /runs/{run_id}/mappings/{mapping_id}", api.handleCorrectMapping)
	mux.HandleFunc("GET /runs/{run_id}/catalog", api.handleCatalog)

	mux.HandleFunc("POST /entities/search", api.handleEntitySearch)

	mux.HandleFunc("GET /schemas", api.handleListSchemas)
	mux.HandleFunc("POST /schemas", api.handleCreateSchema)
	mux.HandleFunc("GET /schemas/{name}", api.handleGetSchema)

	mux.HandleFunc("GET /data-types", api.handleListDataTypes)
	mux.HandleFunc("GET /data-types/{key}", api.handleGetDataType)

	mux.HandleFunc("POST /queries", api.handleSubmitQuery)
}

type runView struct {
	RunID       string     `json:"run_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Source      string     `json:"source"`
	UserID      string     `json:"user_id,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

type taskView struct {
	TaskID      string                `json:"task_id"`
	Name        string                `json:"name"`
	Type        string                `json:"type"`
	Status      string                `json:"status"`
	Duration    float64               `json:"duration_seconds"`
	UpstreamIDs []string              `json:"upstream_ids,omitempty"`
	Arguments   []domain.TaskArgument `json:"arguments,omitempty"`
	Logs        []string              `json:"logs,omitempty"`
}

type decisionView struct {
	DecisionID string                   `json:"decision_id"`
	TaskID     string                   `json:"task_id"`
	Seq        int64                    `json:"seq"`
	Kind       string                   `json:"kind"`
	Content    string                   `json:"content,omitempty"`
	Alignment  *ledger.AlignmentPayload `json:"alignment,omitempty"`
}

func runViewFrom(run domain.Run) runView {
	return runView{
		RunID:       run.ID,
		Name:        run.Config.Name,
		Description: run.Config.Description,
		Source:      run.Config.Source,
		UserID:      run.Config.UserID,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		EndedAt:     run.EndedAt,
	}
}

func taskViewFrom(node domain.TaskNode) taskView {
	return taskView{
		TaskID:      node.ID,
		Name:        node.Name,
		Type:        string(node.Type),
		Status:      string(node.Status),
		Duration:    node.Duration,
		UpstreamIDs: node.UpstreamIDs,
		Arguments:   node.Arguments,
		Logs:        node.Logs,
	}
}

func decisionViewFrom(decision domain.Decision) decisionView {
	view := decisionView{
		DecisionID: decision.ID,
		TaskID:     decision.TaskID,
		Seq:        decision.Seq,
		Kind:       string(decision.Kind),
		Content:    decision.Content,
	}
	if decision.Alignment != nil {
		payload := ledger.AlignmentFromDomain(*decision.Alignment)
		view.Alignment = &payload
	}
	return view
}

type submitRunRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	UserID      string `json:"user_id,omitempty"`
}

func (api *harmoniserAPI) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	run, err := api.runs.Submit(r.Context(), domain.RunConfig{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Source:      strings.TrimSpace(req.Source),
		UserID:      strings.TrimSpace(req.UserID),
	})
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, runViewFrom(run))
}

func (api *harmoniserAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
		Status: domain.RunStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			api.writeError(w, r, http.StatusBadRequest, "invalid_limit")
			return
		}
		filter.Limit = limit
	}
	list, err := api.runs.List(r.Context(), filter)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	views := make([]runView, 0, len(list))
	for _, run := range list {
		views = append(views, runViewFrom(run))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (api *harmoniserAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	status, err := api.runs.GetStatus(r.Context(), r.PathValue("run_id"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	tasks := make([]taskView, 0, len(status.Tasks))
	for _, node := range status.Tasks {
		tasks = append(tasks, taskViewFrom(node))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"run":   runViewFrom(status.Run),
		"tasks": tasks,
	})
}

func (api *harmoniserAPI) handleRerun(w http.ResponseWriter, r *http.Request) {
	run, err := api.runs.Rerun(r.Context(), r.PathValue("run_id"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, runViewFrom(run))
}

func (api *harmoniserAPI) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := api.runs.Cancel(r.Context(), r.PathValue("run_id")); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *harmoniserAPI) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if column := strings.TrimSpace(r.URL.Query().Get("column")); column != "" {
		alignment, err := api.ledger.ColumnAlignment(r.Context(), runID, column)
		if err != nil {
			api.writeDomainError(w, r, err)
			return
		}
		api.writeJSON(w, http.StatusOK, ledger.AlignmentFromDomain(alignment))
		return
	}
	decisions, err := api.ledger.ListForRun(r.Context(), runID)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	views := make([]decisionView, 0, len(decisions))
	for _, decision := range decisions {
		views = append(views, decisionViewFrom(decision))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"decisions": views})
}

func (api *harmoniserAPI) handleListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := api.ledger.Mappings(r.Context(), r.PathValue("run_id"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	views := make([]mappingView, 0, len(mappings))
	for _, mapping := range mappings {
		views = append(views, mappingViewFrom(mapping))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"mappings": views})
}

type mappingView struct {
	MappingID       string   `json:"mapping_id"`
	Mention         string   `json:"mention"`
	EntityID        string   `json:"entity_id,omitempty"`
	EntityName      string   `json:"entity_name,omitempty"`
	Types           []string `json:"types,omitempty"`
	Score           float64  `json:"score"`
	NormalisedScore float64  `json:"normalised_score"`
	DisplayScore    float64  `json:"display_score"`
}

func mappingViewFrom(mapping domain.Mapping) mappingView {
	return mappingView{
		MappingID:       mapping.MappingID,
		Mention:         mapping.Mention,
		EntityID:        mapping.EntityID,
		EntityName:      mapping.EntityName,
		Types:           mapping.Types,
		Score:           mapping.Score,
		NormalisedScore: mapping.NormalisedScore,
		DisplayScore:    resolver.DisplayScore(mapping.NormalisedScore),
	}
}

type correctMappingRequest struct {
	EntityID string `json:"entity_id"`
	Actor    string `json:"actor,omitempty"`
}

func (api *harmoniserAPI) handleCorrectMapping(w http.ResponseWriter, r *http.Request) {
	var req correctMappingRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	entityID := strings.TrimSpace(req.EntityID)
	if entityID == "" {
		api.writeError(w, r, http.StatusBadRequest, "entity_id_required")
		return
	}
	entity, ok := api.index.Get(entityID)
	if !ok {
		api.writeError(w, r, http.StatusNotFound, "unknown_entity")
		return
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor = "anonymous"
	}
	mapping, err := api.ledger.CorrectMapping(r.Context(), r.PathValue("run_id"), r.PathValue("mapping_id"), entity, actor)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, mappingViewFrom(mapping))
}

func (api *harmoniserAPI) handleCatalog(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if _, err := api.runs.GetStatus(r.Context(), runID); err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	keys, err := api.store.List(r.Context(), api.storeCfg.BucketHarmonise, runID+"/")
	if err != nil {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"bucket":  api.storeCfg.BucketHarmonise,
		"objects": keys,
	})
}

type entitySearchRequest struct {
	Query string   `json:"query"`
	Types []string `json:"types,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

type entityMatchView struct {
	EntityID     string   `json:"entity_id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Synonyms     []string `json:"synonyms,omitempty"`
	Score        float64  `json:"score"`
	DisplayScore float64  `json:"display_score"`
}

func (api *harmoniserAPI) handleEntitySearch(w http.ResponseWriter, r *http.Request) {
	var req entitySearchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	types := make([]domain.EntityType, 0, len(req.Types))
	for _, raw := range req.Types {
		types = append(types, domain.EntityType(raw))
	}
	matches, err := api.resolver.Search(types, req.Query, req.Limit)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	views := make([]entityMatchView, 0, len(matches))
	for _, match := range matches {
		views = append(views, entityMatchView{
			EntityID:     match.Entity.ID,
			Name:         match.Entity.Name,
			Type:         string(match.Entity.Type),
			Synonyms:     match.Entity.Synonyms,
			Score:        match.NormalisedScore,
			DisplayScore: resolver.DisplayScore(match.NormalisedScore),
		})
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"matches": views})
}

func (api *harmoniserAPI) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	list, err := api.registry.List(r.Context())
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	views := make([]schemas.Spec, 0, len(list))
	for _, schema := range list {
		views = append(views, schemas.SpecFromDomain(schema))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"schemas": views})
}

func (api *harmoniserAPI) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var schema domain.Schema
	if isYAMLContentType(r.Header.Get("Content-Type")) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_body")
			return
		}
		schema, err = schemas.ParseSpec(body)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_schema")
			return
		}
	} else {
		var spec schemas.Spec
		if err := decodeJSON(r, &spec); err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
		var err error
		schema, err = spec.ToDomain()
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_schema")
			return
		}
	}
	created, err := api.registry.Create(r.Context(), schema)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, schemas.SpecFromDomain(created))
}

func (api *harmoniserAPI) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := api.registry.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, schemas.SpecFromDomain(schema))
}

type dataTypeView struct {
	Key         string              `json:"key"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Params      []dataTypeParamView `json:"params,omitempty"`
}

type dataTypeParamView struct {
	Key           string               `json:"key"`
	Name          string               `json:"name"`
	AllowMultiple bool                 `json:"allow_multiple"`
	Default       string               `json:"default,omitempty"`
	Options       []dataTypeOptionView `json:"options,omitempty"`
}

type dataTypeOptionView struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

func dataTypeViewFrom(dataType domain.DataType) dataTypeView {
	view := dataTypeView{
		Key:         dataType.Key,
		Name:        dataType.Name,
		Description: dataType.Description,
	}
	for _, param := range dataType.Params {
		paramView := dataTypeParamView{
			Key:           param.Key,
			Name:          param.Name,
			AllowMultiple: param.AllowMultiple,
			Default:       param.Default,
		}
		for _, option := range param.Options {
			paramView.Options = append(paramView.Options, dataTypeOptionView{
				Name:        option.Name,
				Value:       option.Value,
				Description: option.Description,
			})
		}
		view.Params = append(view.Params, paramView)
	}
	return view
}

func (api *harmoniserAPI) handleListDataTypes(w http.ResponseWriter, r *http.Request) {
	catalogue := schemas.DataTypes()
	views := make([]dataTypeView, 0, len(catalogue))
	for _, dataType := range catalogue {
		views = append(views, dataTypeViewFrom(dataType))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"data_types": views})
}

func (api *harmoniserAPI) handleGetDataType(w http.ResponseWriter, r *http.Request) {
	dataType, err := schemas.GetDataType(r.PathValue("key"))
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, dataTypeViewFrom(dataType))
}

type submitQueryRequest struct {
	RunID string `json:"run_id"`
	Query string `json:"query"`
}

func (api *harmoniserAPI) handleSubmitQuery(w http.ResponseWriter, r *http.Request) {
	var req submitQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	jobID, err := api.submitter.Submit(r.Context(), strings.TrimSpace(req.RunID), req.Query)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID})
}

func isYAMLContentType(contentType string) bool {
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return true
	}
	return false
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *harmoniserAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *harmoniserAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *harmoniserAPI) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidColumn),
		errors.Is(err, domain.ErrInvalidQuery):
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, domain.ErrDuplicateName):
		api.writeError(w, r, http.StatusConflict, "duplicate_name")
	default:
		api.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}
