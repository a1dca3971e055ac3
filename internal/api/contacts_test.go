package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/crm-contacts/internal/api"
	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

// stubService records the last call per method and returns canned values.
type stubService struct {
	contacts map[string]*domain.Contact

	lastFilter   contact.ListFilter
	lastInput    contact.Input
	lastForce    bool
	lastDelete   bool
	lastAttach   []string
	lastRows     []contact.ImportRow
	lastUpdate   bool
	lastStatus   domain.ContactStatus
	importResult *contact.ImportResult
}

func (s *stubService) Get(_ context.Context, id string) (*domain.Contact, error) {
	c, ok := s.contacts[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	return c, nil
}

func (s *stubService) List(_ context.Context, f contact.ListFilter) ([]domain.Contact, int, error) {
	s.lastFilter = f
	return nil, 0, nil
}

func (s *stubService) Create(_ context.Context, in contact.Input) (*domain.Contact, error) {
	if in.Fields["email"] == "" {
		return nil, contact.ErrEmailRequired
	}
	s.lastInput = in
	return &domain.Contact{ID: "c1", Email: in.Fields["email"]}, nil
}

func (s *stubService) UpdateOrCreate(_ context.Context, in contact.Input, force, deleteOthers bool) (*domain.Contact, error) {
	s.lastInput, s.lastForce, s.lastDelete = in, force, deleteOthers
	return &domain.Contact{ID: "c1"}, nil
}

func (s *stubService) Import(_ context.Context, rows []contact.ImportRow, _, _ []string, update bool, status domain.ContactStatus) (*contact.ImportResult, error) {
	s.lastRows, s.lastUpdate, s.lastStatus = rows, update, status
	if s.importResult != nil {
		return s.importResult, nil
	}
	return &contact.ImportResult{}, nil
}

func (s *stubService) AttachTags(_ context.Context, id string, ids []string) error {
	if _, ok := s.contacts[id]; !ok {
		return contact.ErrNotFound
	}
	s.lastAttach = ids
	return nil
}

func (s *stubService) DetachTags(_ context.Context, id string, ids []string) error {
	s.lastAttach = ids
	return nil
}

func (s *stubService) AttachLists(_ context.Context, id string, ids []string) error {
	s.lastAttach = ids
	return nil
}

func (s *stubService) DetachLists(_ context.Context, id string, ids []string) error {
	s.lastAttach = ids
	return nil
}

func (s *stubService) SyncCustomFieldValues(_ context.Context, id string, values map[string]string, deleteOthers bool) error {
	s.lastDelete = deleteOthers
	return nil
}

func (s *stubService) CustomFields(_ context.Context, id string) (map[string]string, error) {
	return map[string]string{"plan": "gold"}, nil
}

func (s *stubService) Stats(_ context.Context, id string) (domain.EngagementStats, error) {
	if _, ok := s.contacts[id]; !ok {
		return domain.EngagementStats{}, contact.ErrNotFound
	}
	return domain.EngagementStats{Emails: 10, Opens: 4, Clicks: 1}, nil
}

func (s *stubService) SendDoubleOptIn(_ context.Context, id string) error { return nil }

func newTestServer(svc *stubService) *httptest.Server {
	handler := api.NewRouter(api.NewContactsAPI(svc, nil))
	return httptest.NewServer(handler)
}

func TestListContactsParsesFilters(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{}}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/contacts?search=ada&status=subscribed,pending&tag_ids=t1,t2&page=3&per_page=20")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada", svc.lastFilter.Search)
	assert.Equal(t, []string{"subscribed", "pending"}, svc.lastFilter.Statuses)
	assert.Equal(t, []string{"t1", "t2"}, svc.lastFilter.TagIDs)
	assert.Equal(t, 20, svc.lastFilter.Limit)
	assert.Equal(t, 40, svc.lastFilter.Offset)
}

func TestCreateContact(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{}}
	ts := newTestServer(svc)
	defer ts.Close()

	body := `{"fields":{"email":"ada@example.com","first_name":"Ada"}}`
	resp, err := http.Post(ts.URL+"/api/contacts", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created domain.Contact
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "ada@example.com", created.Email)
}

func TestCreateContactRequiresEmail(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{}}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/contacts", "application/json", strings.NewReader(`{"fields":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpsertContactQueryFlags(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{}}
	ts := newTestServer(svc)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPut,
		ts.URL+"/api/contacts?force_update=true&delete_other_values=true",
		strings.NewReader(`{"fields":{"email":"ada@example.com"}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, svc.lastForce)
	assert.True(t, svc.lastDelete)
}

func TestGetContactNotFound(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{}}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/contacts/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetStats(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{
		"c1": {ID: "c1", Email: "ada@example.com"},
	}}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/contacts/c1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats domain.EngagementStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 10, stats.Emails)
	assert.Equal(t, 4, stats.Opens)
}

func TestAttachTagsRoute(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{
		"c1": {ID: "c1", Email: "ada@example.com"},
	}}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/contacts/c1/tags/attach", "application/json",
		strings.NewReader(`{"ids":["t1","t2"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"t1", "t2"}, svc.lastAttach)
}

func TestImportContactsCSV(t *testing.T) {
	svc := &stubService{
		contacts: map[string]*domain.Contact{},
		importResult: &contact.ImportResult{
			Inserted: []domain.Contact{{ID: "n1"}},
		},
	}
	ts := newTestServer(svc)
	defer ts.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "contacts.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("email,first name\nada@example.com,Ada\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/contacts/import?update=true&new_status=pending",
		mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, svc.lastRows, 1)
	assert.Equal(t, "ada@example.com", svc.lastRows[0].Fields["email"])
	assert.True(t, svc.lastUpdate)
	assert.Equal(t, domain.ContactPending, svc.lastStatus)

	var out struct {
		Inserted int `json:"inserted"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Inserted)
}

func TestMappablesRoute(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{}}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/contacts/mappables")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Mappables map[string]string `json:"mappables"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Email", out.Mappables["email"])
}

func TestHealthEndpoint(t *testing.T) {
	svc := &stubService{contacts: map[string]*domain.Contact{}}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
