package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/importer"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

// ContactService is the slice of the contact service the HTTP layer needs.
type ContactService interface {
	Get(ctx context.Context, id string) (*domain.Contact, error)
	List(ctx context.Context, f contact.ListFilter) ([]domain.Contact, int, error)
	Create(ctx context.Context, in contact.Input) (*domain.Contact, error)
	UpdateOrCreate(ctx context.Context, in contact.Input, forceUpdate, deleteOtherValues bool) (*domain.Contact, error)
	Import(ctx context.Context, rows []contact.ImportRow, tagIDs, listIDs []string, shouldUpdate bool, newStatus domain.ContactStatus) (*contact.ImportResult, error)
	AttachTags(ctx context.Context, contactID string, tagIDs []string) error
	DetachTags(ctx context.Context, contactID string, tagIDs []string) error
	AttachLists(ctx context.Context, contactID string, listIDs []string) error
	DetachLists(ctx context.Context, contactID string, listIDs []string) error
	SyncCustomFieldValues(ctx context.Context, contactID string, values map[string]string, deleteOtherValues bool) error
	CustomFields(ctx context.Context, contactID string) (map[string]string, error)
	Stats(ctx context.Context, contactID string) (domain.EngagementStats, error)
	SendDoubleOptIn(ctx context.Context, contactID string) error
}

// ContactsAPI provides HTTP handlers for the contact routes.
type ContactsAPI struct {
	service     ContactService
	customSlugs func(ctx context.Context) []string
}

// NewContactsAPI creates the contact API handler. customSlugs supplies the
// known custom field slugs for CSV header mapping; nil means none.
func NewContactsAPI(service ContactService, customSlugs func(ctx context.Context) []string) *ContactsAPI {
	if customSlugs == nil {
		customSlugs = func(context.Context) []string { return nil }
	}
	return &ContactsAPI{service: service, customSlugs: customSlugs}
}

// RegisterRoutes registers the contact routes.
func (api *ContactsAPI) RegisterRoutes(r chi.Router) {
	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", api.HandleListContacts)
		r.Post("/", api.HandleCreateContact)
		r.Put("/", api.HandleUpsertContact)
		r.Post("/import", api.HandleImportContacts)
		r.Get("/mappables", api.HandleGetMappables)

		r.Route("/{contactId}", func(r chi.Router) {
			r.Get("/", api.HandleGetContact)
			r.Get("/stats", api.HandleGetStats)
			r.Get("/custom-fields", api.HandleGetCustomFields)
			r.Put("/custom-fields", api.HandleSyncCustomFields)
			r.Post("/tags/attach", api.HandleAttachTags)
			r.Post("/tags/detach", api.HandleDetachTags)
			r.Post("/lists/attach", api.HandleAttachLists)
			r.Post("/lists/detach", api.HandleDetachLists)
			r.Post("/double-opt-in", api.HandleSendDoubleOptIn)
		})
	})
}

// HandleListContacts returns a filtered page of contacts.
// GET /api/contacts
func (api *ContactsAPI) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := contact.ListFilter{
		Search:      q.Get("search"),
		Statuses:    splitParam(q.Get("status")),
		ContactType: q.Get("contact_type"),
		TagIDs:      splitParam(q.Get("tag_ids")),
		TagSlugs:    splitParam(q.Get("tag_slugs")),
		ListIDs:     splitParam(q.Get("list_ids")),
		ListSlugs:   splitParam(q.Get("list_slugs")),
	}

	perPage := intParam(q.Get("per_page"), 50)
	page := intParam(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	contacts, total, err := api.service.List(r.Context(), filter)
	if err != nil {
		writeJSONError(w, "failed to list contacts", http.StatusInternalServerError)
		return
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contacts": contacts,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// HandleCreateContact creates a new contact.
// POST /api/contacts
func (api *ContactsAPI) HandleCreateContact(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := api.service.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, contact.ErrEmailRequired) {
			writeJSONError(w, "email is required", http.StatusBadRequest)
			return
		}
		writeJSONError(w, "failed to create contact", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// HandleUpsertContact updates a contact matched by email, or creates it.
// PUT /api/contacts?force_update=true&delete_other_values=false
func (api *ContactsAPI) HandleUpsertContact(w http.ResponseWriter, r *http.Request) {
	var in contact.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	force := boolParam(r.URL.Query().Get("force_update"))
	deleteOthers := boolParam(r.URL.Query().Get("delete_other_values"))

	c, err := api.service.UpdateOrCreate(r.Context(), in, force, deleteOthers)
	if err != nil {
		if errors.Is(err, contact.ErrEmailRequired) {
			writeJSONError(w, "email is required", http.StatusBadRequest)
			return
		}
		writeJSONError(w, "failed to upsert contact", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// HandleImportContacts ingests a CSV upload and imports the rows.
// POST /api/contacts/import (multipart, field "file")
//
// Query params: tag_ids, list_ids (comma-separated), update=true to refresh
// existing contacts, new_status to override the status of imported rows.
func (api *ContactsAPI) HandleImportContacts(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "missing file upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, skipped, err := importer.ReadRows(file, api.customSlugs(r.Context()))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	result, err := api.service.Import(r.Context(),
		rows,
		splitParam(q.Get("tag_ids")),
		splitParam(q.Get("list_ids")),
		boolParam(q.Get("update")),
		domain.ContactStatus(q.Get("new_status")),
	)
	if err != nil {
		writeJSONError(w, "import failed", http.StatusInternalServerError)
		return
	}

	RecordImport(len(result.Inserted), len(result.Updated), len(result.Failed))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"inserted": len(result.Inserted),
		"updated":  len(result.Updated),
		"failed":   result.Failed,
		"skipped":  skipped,
	})
}

// HandleGetMappables returns the importable column catalogue.
// GET /api/contacts/mappables
func (api *ContactsAPI) HandleGetMappables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"mappables": domain.Mappables()})
}

// HandleGetContact returns one contact by id.
// GET /api/contacts/{contactId}
func (api *ContactsAPI) HandleGetContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contactId")

	c, err := api.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			writeJSONError(w, "contact not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to load contact", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// HandleGetStats returns engagement counters for a contact.
// GET /api/contacts/{contactId}/stats
func (api *ContactsAPI) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := api.service.Stats(r.Context(), chi.URLParam(r, "contactId"))
	if err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			writeJSONError(w, "contact not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// HandleGetCustomFields returns the contact's custom field values, limited to
// slugs present in the field catalogue.
// GET /api/contacts/{contactId}/custom-fields
func (api *ContactsAPI) HandleGetCustomFields(w http.ResponseWriter, r *http.Request) {
	values, err := api.service.CustomFields(r.Context(), chi.URLParam(r, "contactId"))
	if err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			writeJSONError(w, "contact not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to load custom fields", http.StatusInternalServerError)
		return
	}
	if values == nil {
		values = map[string]string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"custom_fields": values})
}

// HandleSyncCustomFields writes custom field values for a contact.
// PUT /api/contacts/{contactId}/custom-fields?delete_other_values=true
func (api *ContactsAPI) HandleSyncCustomFields(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Values map[string]string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	deleteOthers := boolParam(r.URL.Query().Get("delete_other_values"))
	id := chi.URLParam(r, "contactId")
	if err := api.service.SyncCustomFieldValues(r.Context(), id, req.Values, deleteOthers); err != nil {
		writeJSONError(w, "failed to sync custom fields", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleAttachTags attaches tags to a contact.
// POST /api/contacts/{contactId}/tags/attach
func (api *ContactsAPI) HandleAttachTags(w http.ResponseWriter, r *http.Request) {
	api.handleAssociation(w, r, api.service.AttachTags)
}

// HandleDetachTags removes tags from a contact.
// POST /api/contacts/{contactId}/tags/detach
func (api *ContactsAPI) HandleDetachTags(w http.ResponseWriter, r *http.Request) {
	api.handleAssociation(w, r, api.service.DetachTags)
}

// HandleAttachLists attaches lists to a contact.
// POST /api/contacts/{contactId}/lists/attach
func (api *ContactsAPI) HandleAttachLists(w http.ResponseWriter, r *http.Request) {
	api.handleAssociation(w, r, api.service.AttachLists)
}

// HandleDetachLists removes lists from a contact.
// POST /api/contacts/{contactId}/lists/detach
func (api *ContactsAPI) HandleDetachLists(w http.ResponseWriter, r *http.Request) {
	api.handleAssociation(w, r, api.service.DetachLists)
}

func (api *ContactsAPI) handleAssociation(w http.ResponseWriter, r *http.Request, op func(context.Context, string, []string) error) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := op(r.Context(), chi.URLParam(r, "contactId"), req.IDs); err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			writeJSONError(w, "contact not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "operation failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSendDoubleOptIn sends the confirmation email to a contact.
// POST /api/contacts/{contactId}/double-opt-in
func (api *ContactsAPI) HandleSendDoubleOptIn(w http.ResponseWriter, r *http.Request) {
	if err := api.service.SendDoubleOptIn(r.Context(), chi.URLParam(r, "contactId")); err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			writeJSONError(w, "contact not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "failed to send opt-in email", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
