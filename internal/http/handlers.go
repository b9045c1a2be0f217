package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"carteira/internal/classify"
	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/schedule"
	"carteira/internal/storage"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type movementRequest struct {
	Direction   string `json:"tipo_movimentacao"`
	Amount      any    `json:"valor"`
	Date        string `json:"data"`
	Category    string `json:"categoria"`
	Description string `json:"descricao"`
	Icon        string `json:"icone_selecionado"`
}

type movementResponse struct {
	ID          int64  `json:"id"`
	Direction   string `json:"tipo_movimentacao"`
	AmountCents int64  `json:"valor_cents"`
	Amount      string `json:"valor"`
	Category    string `json:"categoria"`
	Description string `json:"descricao,omitempty"`
	Icon        string `json:"icone_selecionado,omitempty"`
	Date        string `json:"data"`
	CreatedAt   string `json:"criado_em"`
}

func toMovementResponse(mv core.Movement) movementResponse {
	return movementResponse{
		ID:          mv.ID,
		Direction:   string(mv.Direction),
		AmountCents: mv.Amount.Cents,
		Amount:      mv.Amount.String(),
		Category:    string(mv.Category),
		Description: mv.Description,
		Icon:        mv.Icon,
		Date:        mv.Date.String(),
		CreatedAt:   mv.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.owner(w, r)
	if !ok {
		return
	}

	var req movementRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cents, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed date %q", req.Date))
		return
	}

	input := core.Movement{
		OwnerID:     ownerID,
		Direction:   core.Direction(req.Direction),
		Amount:      core.Money{Cents: cents},
		Category:    core.Category(req.Category),
		Description: req.Description,
		Icon:        req.Icon,
		Date:        date,
	}
	if err := input.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mv, err := s.movements.Create(r.Context(), input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateOwner(ownerID)
	writeJSON(w, http.StatusCreated, toMovementResponse(mv))
}

type importResponse struct {
	Imported int                `json:"imported"`
	Warnings []string           `json:"avisos,omitempty"`
	Records  []movementResponse `json:"registros"`
}

func (s *Server) handleImportMovements(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.owner(w, r)
	if !ok {
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	imported, warnings, err := s.movements.Import(r.Context(), ownerID, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.invalidateOwner(ownerID)

	resp := importResponse{Imported: len(imported), Records: []movementResponse{}}
	for _, mv := range imported {
		resp.Records = append(resp.Records, toMovementResponse(mv))
	}
	for _, warning := range warnings {
		resp.Warnings = append(resp.Warnings, warning.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecentMovements(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.owner(w, r)
	if !ok {
		return
	}

	limit := s.recentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	movements, err := s.movements.Recent(r.Context(), ownerID, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]movementResponse, 0, len(movements))
	for _, mv := range movements {
		resp = append(resp, toMovementResponse(mv))
	}
	writeJSON(w, http.StatusOK, resp)
}

type dashboardResponse struct {
	TotalsByCategory map[string]int64   `json:"totais_por_categoria"`
	GrandTotalCents  int64              `json:"total_geral_cents"`
	NetBalanceCents  int64              `json:"saldo_cents"`
	Recent           []movementResponse `json:"recentes"`
	Warnings         []string           `json:"avisos,omitempty"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.owner(w, r)
	if !ok {
		return
	}

	cacheKey := "dashboard:" + ownerID
	dash, hit := s.dashboardCache.Get(cacheKey)
	if !hit {
		var err error
		dash, err = s.movements.BuildDashboard(r.Context(), ownerID, s.recentLimit)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.dashboardCache.Set(cacheKey, dash)
	}

	resp := dashboardResponse{
		TotalsByCategory: make(map[string]int64, len(dash.TotalsByCategory)),
		GrandTotalCents:  dash.GrandTotal.Cents,
		NetBalanceCents:  dash.NetBalance.Cents,
		Recent:           []movementResponse{},
	}
	for category, total := range dash.TotalsByCategory {
		resp.TotalsByCategory[string(category)] = total.Cents
	}
	for _, mv := range dash.Recent {
		resp.Recent = append(resp.Recent, toMovementResponse(mv))
	}
	for _, warning := range dash.Warnings {
		resp.Warnings = append(resp.Warnings, warning.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

type planRequest struct {
	Title         string `json:"titulo"`
	Kind          string `json:"tipo"`
	LoanDirection string `json:"direcao_emprestimo"`
	Total         any    `json:"valor_total"`
	Count         int    `json:"parcelas"`
	Account       string `json:"conta"`
	Icon          string `json:"icone_selecionado"`
	Cadence       string `json:"cadencia"`
}

type planResponse struct {
	ID            int64  `json:"id"`
	Title         string `json:"titulo"`
	Kind          string `json:"tipo"`
	LoanDirection string `json:"direcao_emprestimo,omitempty"`
	TotalCents    int64  `json:"valor_total_cents"`
	Count         int    `json:"parcelas"`
	Account       string `json:"conta,omitempty"`
	Icon          string `json:"icone_selecionado,omitempty"`
	CreatedAt     string `json:"criado_em"`
}

type installmentResponse struct {
	ID          int64  `json:"id"`
	PlanID      int64  `json:"plan_id"`
	Seq         int    `json:"numero"`
	AmountCents int64  `json:"valor_cents"`
	DueDate     string `json:"vencimento"`
	Status      string `json:"situacao"`
	PaidOn      string `json:"pago_em,omitempty"`
}

func toPlanResponse(plan core.InstallmentPlan) planResponse {
	return planResponse{
		ID:            plan.ID,
		Title:         plan.Title,
		Kind:          string(plan.Kind),
		LoanDirection: string(plan.LoanDirection),
		TotalCents:    plan.Total.Cents,
		Count:         plan.Count,
		Account:       plan.Account,
		Icon:          plan.Icon,
		CreatedAt:     plan.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.owner(w, r)
	if !ok {
		return
	}

	var req planRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cents, err := parseAmount(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := core.InstallmentPlan{
		OwnerID:       ownerID,
		Title:         req.Title,
		Kind:          core.PlanKind(req.Kind),
		LoanDirection: core.LoanDirection(req.LoanDirection),
		Total:         core.Money{Cents: cents},
		Count:         req.Count,
		Account:       req.Account,
		Icon:          req.Icon,
	}
	if err := input.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := schedule.GetCadence(schedule.CadenceName(req.Cadence)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, installments, err := s.plans.CreatePlan(r.Context(), input, schedule.CadenceName(req.Cadence))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	reference := core.DateOf(time.Now())
	resp := struct {
		Plan         planResponse          `json:"plano"`
		Installments []installmentResponse `json:"parcelas"`
	}{Plan: toPlanResponse(plan)}
	for _, inst := range installments {
		resp.Installments = append(resp.Installments, toInstallmentResponse(inst, classify.ForInstallment(inst, reference)))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.owner(w, r)
	if !ok {
		return
	}

	plans, err := s.plans.ListPlans(r.Context(), ownerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		resp = append(resp, toPlanResponse(plan))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toInstallmentResponse(inst core.Installment, status classify.Status) installmentResponse {
	return installmentResponse{
		ID:          inst.ID,
		PlanID:      inst.PlanID,
		Seq:         inst.Seq,
		AmountCents: inst.Amount.Cents,
		DueDate:     inst.DueDate.String(),
		Status:      string(status),
		PaidOn:      inst.PaidOn.String(),
	}
}

func (s *Server) handleListInstallments(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.owner(w, r)
	if !ok {
		return
	}

	planID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	// Status is derived from an explicit reference date, today by default.
	reference := core.DateOf(time.Now())
	if raw := r.URL.Query().Get("referencia"); raw != "" {
		reference, err = core.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed reference date %q", raw))
			return
		}
	}

	views, err := s.plans.Installments(r.Context(), ownerID, planID, reference)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]installmentResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toInstallmentResponse(v.Installment, v.View))
	}
	writeJSON(w, http.StatusOK, resp)
}

type payRequest struct {
	PaidOn string `json:"pago_em"`
}

func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := s.owner(w, r)
	if !ok {
		return
	}

	installmentID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid installment id")
		return
	}

	var req payRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	paidOn := core.DateOf(time.Now())
	if req.PaidOn != "" {
		paidOn, err = core.ParseDate(req.PaidOn)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed date %q", req.PaidOn))
			return
		}
	}

	inst, err := s.plans.Pay(r.Context(), ownerID, installmentID, paidOn)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.invalidateOwner(ownerID)
	writeJSON(w, http.StatusOK, toInstallmentResponse(inst, classify.Paid))
}

// owner reads the caller identity from the X-User-ID header.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
		return "", false
	}
	return ownerID, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := io.LimitReader(r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

// parseAmount accepts a decimal string or a JSON number, in cents.
func parseAmount(v any) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, errors.New("missing amount")
	case string:
		cents, err := core.ParseDecimalToCents(val)
		if err != nil {
			return 0, fmt.Errorf("malformed amount %q", val)
		}
		return cents, nil
	case float64:
		if val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, fmt.Errorf("invalid amount %v", val)
		}
		return int64(math.Round(val * 100)), nil
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}

// writeServiceError maps service and storage errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "installment already paid")
	case errors.Is(err, core.ErrEmptyOwner),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDirection),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidCount),
		errors.Is(err, core.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
