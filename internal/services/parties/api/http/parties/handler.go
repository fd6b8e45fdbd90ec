// Package parties exposes party management and the participation ledger
// over JSON HTTP.
package parties

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/louisbranch/gathering.space/internal/services/parties/domain"
	"github.com/louisbranch/gathering.space/internal/services/shared/httpapi"
)

// Service is the party use-case surface served over HTTP.
type Service interface {
	CreateParty(ctx context.Context, input domain.CreatePartyInput) (domain.Party, error)
	UpdateParty(ctx context.Context, input domain.UpdatePartyInput) (domain.Party, error)
	GetPartyDetails(ctx context.Context, partyID string, viewerUserID string) (domain.PartyDetails, error)
	RemainingCapacity(ctx context.Context, partyID string) (domain.Capacity, error)
	RequestJoin(ctx context.Context, input domain.RequestJoinInput) (domain.Participation, error)
	ParticipantCancel(ctx context.Context, input domain.CancelInput) (domain.Participation, error)
	OrganizerDecide(ctx context.Context, input domain.DecideInput) (domain.Participation, error)
	ListOrganized(ctx context.Context, input domain.ListPartiesInput) (domain.PartyPage, error)
	ListParticipated(ctx context.Context, input domain.ListPartiesInput) (domain.PartyPage, error)
}

// Handler serves party routes.
type Handler struct {
	service Service
}

// NewHandler builds party routes over service.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts party routes on the authenticated group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/parties", h.createParty)
	api.GET("/parties/:party_id", h.getParty)
	api.PUT("/parties/:party_id", h.updateParty)
	api.GET("/parties/:party_id/capacity", h.capacity)
	api.POST("/parties/:party_id/participations", h.requestJoin)
	api.POST("/parties/:party_id/participation/cancel", h.cancelByParty)
	api.POST("/parties/:party_id/participations/:participation_id/decision", h.decide)
	api.POST("/participations/:participation_id/cancel", h.cancelByRecord)
	api.GET("/me/parties/organized", h.listOrganized)
	api.GET("/me/parties/participated", h.listParticipated)
}

type partyRequest struct {
	Title            string     `json:"title"`
	Body             string     `json:"body"`
	Notice           string     `json:"notice"`
	PlaceName        string     `json:"place_name"`
	Address          string     `json:"address"`
	ParticipantCost  int        `json:"participant_cost"`
	ParticipantLimit *int       `json:"participant_limit"`
	GatherAt         time.Time  `json:"gather_at"`
	DueAt            *time.Time `json:"due_at"`
}

func (r partyRequest) fields() domain.PartyFields {
	return domain.PartyFields{
		Title:            r.Title,
		Body:             r.Body,
		Notice:           r.Notice,
		PlaceName:        r.PlaceName,
		Address:          r.Address,
		ParticipantCost:  r.ParticipantCost,
		ParticipantLimit: r.ParticipantLimit,
		GatherAt:         r.GatherAt,
		DueAt:            r.DueAt,
	}
}

type decisionRequest struct {
	Status string `json:"status"`
}

type partyJSON struct {
	ID               string     `json:"id"`
	OrganizerUserID  string     `json:"organizer_user_id"`
	Title            string     `json:"title"`
	Body             string     `json:"body,omitempty"`
	Notice           string     `json:"notice,omitempty"`
	PlaceName        string     `json:"place_name,omitempty"`
	Address          string     `json:"address,omitempty"`
	ParticipantCost  int        `json:"participant_cost"`
	ParticipantLimit *int       `json:"participant_limit"`
	GatherAt         time.Time  `json:"gather_at"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type participationJSON struct {
	ID                string    `json:"id"`
	PartyID           string    `json:"party_id"`
	ParticipantUserID string    `json:"participant_user_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type capacityJSON struct {
	ApprovedCount    int    `json:"approved_count"`
	ParticipantLimit *int   `json:"participant_limit"`
	Remaining        *int   `json:"remaining"`
	ParticipantsInfo string `json:"participants_info"`
}

type partyDetailsJSON struct {
	Party    partyJSON           `json:"party"`
	Capacity capacityJSON        `json:"capacity"`
	Approved []participationJSON `json:"approved"`
	Pending  []participationJSON `json:"pending,omitempty"`
	Viewer   *participationJSON  `json:"viewer,omitempty"`
}

type partyPageJSON struct {
	Parties    []partyJSON `json:"parties"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
}

func (h *Handler) createParty(c *gin.Context) {
	var req partyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid party body", err)
		return
	}
	party, err := h.service.CreateParty(c.Request.Context(), domain.CreatePartyInput{
		OrganizerUserID: httpapi.UserID(c),
		Fields:          req.fields(),
	})
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPartyJSON(party))
}

func (h *Handler) updateParty(c *gin.Context) {
	var req partyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid party body", err)
		return
	}
	party, err := h.service.UpdateParty(c.Request.Context(), domain.UpdatePartyInput{
		PartyID:     c.Param("party_id"),
		ActorUserID: httpapi.UserID(c),
		Fields:      req.fields(),
	})
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPartyJSON(party))
}

func (h *Handler) getParty(c *gin.Context) {
	details, err := h.service.GetPartyDetails(c.Request.Context(), c.Param("party_id"), httpapi.UserID(c))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	out := partyDetailsJSON{
		Party:    toPartyJSON(details.Party),
		Capacity: toCapacityJSON(details.Capacity),
		Approved: toParticipationsJSON(details.Approved),
	}
	if len(details.Pending) > 0 {
		out.Pending = toParticipationsJSON(details.Pending)
	}
	if details.Viewer != nil {
		viewer := toParticipationJSON(*details.Viewer)
		out.Viewer = &viewer
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) capacity(c *gin.Context) {
	capacity, err := h.service.RemainingCapacity(c.Request.Context(), c.Param("party_id"))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCapacityJSON(capacity))
}

func (h *Handler) requestJoin(c *gin.Context) {
	record, err := h.service.RequestJoin(c.Request.Context(), domain.RequestJoinInput{
		PartyID:     c.Param("party_id"),
		ActorUserID: httpapi.UserID(c),
	})
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toParticipationJSON(record))
}

func (h *Handler) cancelByParty(c *gin.Context) {
	h.cancel(c, domain.CancelInput{PartyID: c.Param("party_id"), ActorUserID: httpapi.UserID(c)})
}

func (h *Handler) cancelByRecord(c *gin.Context) {
	h.cancel(c, domain.CancelInput{ParticipationID: c.Param("participation_id"), ActorUserID: httpapi.UserID(c)})
}

func (h *Handler) cancel(c *gin.Context, input domain.CancelInput) {
	record, err := h.service.ParticipantCancel(c.Request.Context(), input)
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, toParticipationJSON(record))
}

func (h *Handler) decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid decision body", err)
		return
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		status = domain.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	}
	record, err := h.service.OrganizerDecide(c.Request.Context(), domain.DecideInput{
		ParticipationID: c.Param("participation_id"),
		PartyID:         c.Param("party_id"),
		ActorUserID:     httpapi.UserID(c),
		Status:          status,
	})
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, toParticipationJSON(record))
}

func (h *Handler) listOrganized(c *gin.Context) {
	h.listParties(c, h.service.ListOrganized)
}

func (h *Handler) listParticipated(c *gin.Context) {
	h.listParties(c, h.service.ListParticipated)
}

func (h *Handler) listParties(c *gin.Context, list func(context.Context, domain.ListPartiesInput) (domain.PartyPage, error)) {
	page, err := httpapi.PageQuery(c)
	if err != nil {
		httpapi.BadRequest(c, "invalid page parameters", err)
		return
	}
	result, err := list(c.Request.Context(), domain.ListPartiesInput{
		UserID:   httpapi.UserID(c),
		Page:     page.Page,
		PageSize: page.Size,
	})
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	out := partyPageJSON{
		Parties:    make([]partyJSON, 0, len(result.Parties)),
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	}
	for _, party := range result.Parties {
		out.Parties = append(out.Parties, toPartyJSON(party))
	}
	c.JSON(http.StatusOK, out)
}

func toPartyJSON(p domain.Party) partyJSON {
	return partyJSON{
		ID:               p.ID,
		OrganizerUserID:  p.OrganizerUserID,
		Title:            p.Title,
		Body:             p.Body,
		Notice:           p.Notice,
		PlaceName:        p.PlaceName,
		Address:          p.Address,
		ParticipantCost:  p.ParticipantCost,
		ParticipantLimit: p.ParticipantLimit,
		GatherAt:         p.GatherAt.UTC(),
		DueAt:            p.DueAt,
		CreatedAt:        p.CreatedAt.UTC(),
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func toCapacityJSON(c domain.Capacity) capacityJSON {
	out := capacityJSON{
		ApprovedCount:    c.Approved,
		ParticipantLimit: c.Limit,
		ParticipantsInfo: c.Label(),
	}
	if !c.Unlimited() {
		remaining := c.Remaining()
		out.Remaining = &remaining
	}
	return out
}

func toParticipationJSON(r domain.Participation) participationJSON {
	return participationJSON{
		ID:                r.ID,
		PartyID:           r.PartyID,
		ParticipantUserID: r.ParticipantUserID,
		Status:            string(r.Status),
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func toParticipationsJSON(records []domain.Participation) []participationJSON {
	out := make([]participationJSON, 0, len(records))
	for _, record := range records {
		out = append(out, toParticipationJSON(record))
	}
	return out
}
