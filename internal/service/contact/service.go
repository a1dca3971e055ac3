package contact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/events"
	"github.com/ignite/crm-contacts/internal/pkg/logger"
)

// Input carries the caller-supplied data for Create and UpdateOrCreate.
// Fields holds contact columns; Tags and Lists are ids to attach;
// CustomValues is a custom-field key/value map.
type Input struct {
	Fields       domain.FieldMap   `json:"fields"`
	Tags         []string          `json:"tags"`
	Lists        []string          `json:"lists"`
	CustomValues map[string]string `json:"custom_values"`
}

// Deps bundles the collaborators a Service needs. Contacts, Pivots and Meta
// are required; the rest default to no-op or stdlib implementations.
type Deps struct {
	Contacts Repository
	Pivots   PivotRepository
	Meta     MetaRepository
	Stats    StatsRepository
	Users    UserDirectory
	Catalog  FieldCatalog
	Bus      events.Publisher
	Mailer   Mailer

	// Now supplies timestamps; defaults to time.Now.
	Now func() time.Time
	// ActorID is recorded as created_by on new custom field rows.
	ActorID string
}

// Service implements the contact business logic. It coordinates the contact,
// pivot and meta repositories and fires classification events. Operations
// spanning several writes (UpdateOrCreate, Import) are not atomic across
// repositories; a contact can exist with its custom field sync half applied
// if a later write fails. Callers own retry semantics.
type Service struct {
	contacts Repository
	pivots   PivotRepository
	meta     MetaRepository
	stats    StatsRepository
	users    UserDirectory
	catalog  FieldCatalog
	bus      events.Publisher
	mailer   Mailer
	now      func() time.Time
	actorID  string
}

// NewService creates a contact service from the given dependencies.
func NewService(d Deps) *Service {
	if d.Bus == nil {
		d.Bus = events.NopPublisher{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.ActorID == "" {
		d.ActorID = "system"
	}
	return &Service{
		contacts: d.Contacts,
		pivots:   d.Pivots,
		meta:     d.Meta,
		stats:    d.Stats,
		users:    d.Users,
		catalog:  d.Catalog,
		bus:      d.Bus,
		mailer:   d.Mailer,
		now:      d.Now,
		actorID:  d.ActorID,
	}
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, id string) (*domain.Contact, error) {
	return s.contacts.Get(ctx, id)
}

// List returns contacts matching the filter plus the unpaginated total.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Contact, int, error) {
	return s.contacts.List(ctx, f)
}

// Create inserts a new contact from the fillable subset of the input fields,
// attaches any requested tags and lists (firing the corresponding events for
// the newly attached ids), and applies custom field values without deleting
// absent keys. Returns the persisted contact.
func (s *Service) Create(ctx context.Context, in Input) (*domain.Contact, error) {
	fields := in.Fields.OnlyFillable()
	if domain.NormalizeEmail(fields["email"]) == "" {
		return nil, ErrEmailRequired
	}

	c := &domain.Contact{ID: uuid.New().String(), Status: domain.ContactSubscribed}
	c.Fill(fields)
	c.RecomputeHash()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt

	id, err := s.contacts.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id

	if err := s.attachTags(ctx, c, in.Tags); err != nil {
		return nil, err
	}
	if len(in.CustomValues) > 0 {
		if err := s.SyncCustomFieldValues(ctx, c.ID, in.CustomValues, false); err != nil {
			return nil, err
		}
	}
	if err := s.attachLists(ctx, c, in.Lists); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateOrCreate upserts a single contact keyed by normalized email.
//
// When forceUpdate is false an existing contact with status "subscribed"
// keeps that status regardless of the incoming value; this protects
// confirmed subscribers from demotion and is resolved silently, never as an
// error. deleteOtherValues controls whether custom field keys supplied with
// an empty value get their stored rows removed.
func (s *Service) UpdateOrCreate(ctx context.Context, in Input, forceUpdate, deleteOtherValues bool) (*domain.Contact, error) {
	fields := in.Fields.ExplodeFullName().OnlyFillable()
	email := domain.NormalizeEmail(fields["email"])
	if email == "" {
		return nil, ErrEmailRequired
	}
	fields["email"] = email

	existing, err := s.contacts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if fields["user_id"] == "" && s.users != nil {
		uid, err := s.users.UserIDByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("resolve user id: %w", err)
		}
		if uid != "" {
			fields["user_id"] = uid
		}
	}

	if status := fields["status"]; status != "" {
		switch {
		case forceUpdate:
			// incoming status wins unconditionally
		case existing != nil && existing.Status == domain.ContactSubscribed:
			delete(fields, "status")
		}
	}

	if existing != nil {
		existing.Fill(fields)
		existing.RecomputeHash()
		existing.UpdatedAt = s.now()
		if err := s.contacts.Update(ctx, existing); err != nil {
			return nil, err
		}
	} else {
		c := &domain.Contact{ID: uuid.New().String(), Status: domain.ContactSubscribed}
		c.Fill(fields)
		c.RecomputeHash()
		c.CreatedAt = s.now()
		c.UpdatedAt = c.CreatedAt
		id, err := s.contacts.Create(ctx, c)
		if err != nil {
			return nil, err
		}
		c.ID = id
		existing = c
	}

	if err := s.attachTags(ctx, existing, in.Tags); err != nil {
		return nil, err
	}
	if err := s.attachLists(ctx, existing, in.Lists); err != nil {
		return nil, err
	}
	if len(in.CustomValues) > 0 {
		if err := s.SyncCustomFieldValues(ctx, existing.ID, in.CustomValues, deleteOtherValues); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

// AttachTags attaches the given tag ids to a contact. Already-attached ids
// are skipped; the added_to_tags event carries exactly the newly attached
// ids. A call with nothing new to attach is a complete no-op.
func (s *Service) AttachTags(ctx context.Context, contactID string, tagIDs []string) error {
	c, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return err
	}
	return s.attachTags(ctx, c, tagIDs)
}

// AttachLists behaves like AttachTags for list memberships.
func (s *Service) AttachLists(ctx context.Context, contactID string, listIDs []string) error {
	c, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return err
	}
	return s.attachLists(ctx, c, listIDs)
}

// DetachTags removes the given tag ids from a contact. Only currently
// attached ids are removed; the removed_from_tags event carries exactly
// those. A call removing nothing is a complete no-op.
func (s *Service) DetachTags(ctx context.Context, contactID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	c, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return err
	}
	current, err := s.pivots.TagIDs(ctx, c.ID)
	if err != nil {
		return err
	}
	valid := intersect(tagIDs, current)
	if len(valid) == 0 {
		return nil
	}
	if err := s.pivots.DetachTags(ctx, c.ID, valid); err != nil {
		return err
	}
	s.publish(ctx, events.ContactRemovedFromTags, c, valid)
	return nil
}

// DetachLists behaves like DetachTags for list memberships.
func (s *Service) DetachLists(ctx context.Context, contactID string, listIDs []string) error {
	if len(listIDs) == 0 {
		return nil
	}
	c, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return err
	}
	current, err := s.pivots.ListIDs(ctx, c.ID)
	if err != nil {
		return err
	}
	valid := intersect(listIDs, current)
	if len(valid) == 0 {
		return nil
	}
	if err := s.pivots.DetachLists(ctx, c.ID, valid); err != nil {
		return err
	}
	s.publish(ctx, events.ContactRemovedFromLists, c, valid)
	return nil
}

func (s *Service) attachTags(ctx context.Context, c *domain.Contact, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	current, err := s.pivots.TagIDs(ctx, c.ID)
	if err != nil {
		return err
	}
	fresh := diff(tagIDs, current)
	if len(fresh) == 0 {
		return nil
	}
	if err := s.pivots.AttachTags(ctx, c.ID, fresh); err != nil {
		return err
	}
	s.publish(ctx, events.ContactAddedToTags, c, fresh)
	return nil
}

func (s *Service) attachLists(ctx context.Context, c *domain.Contact, listIDs []string) error {
	if len(listIDs) == 0 {
		return nil
	}
	current, err := s.pivots.ListIDs(ctx, c.ID)
	if err != nil {
		return err
	}
	fresh := diff(listIDs, current)
	if len(fresh) == 0 {
		return nil
	}
	if err := s.pivots.AttachLists(ctx, c.ID, fresh); err != nil {
		return err
	}
	s.publish(ctx, events.ContactAddedToLists, c, fresh)
	return nil
}

// SyncCustomFieldValues applies a key/value map onto a contact's custom
// field rows. Keys present with an empty value are deleted only when
// deleteOtherValues is set; keys absent from values are always left alone.
// Non-empty values are find-or-create-then-update, keeping at most one row
// per (contact, key).
func (s *Service) SyncCustomFieldValues(ctx context.Context, contactID string, values map[string]string, deleteOtherValues bool) error {
	var emptyKeys, newKeys []string
	for k, v := range values {
		if v == "" {
			emptyKeys = append(emptyKeys, k)
		} else {
			newKeys = append(newKeys, k)
		}
	}
	sort.Strings(emptyKeys)
	sort.Strings(newKeys)

	if deleteOtherValues && len(emptyKeys) > 0 {
		if err := s.meta.DeleteByKeys(ctx, contactID, emptyKeys); err != nil {
			return err
		}
	}

	for _, key := range newKeys {
		existing, err := s.meta.Find(ctx, contactID, key)
		switch {
		case errors.Is(err, ErrNotFound):
			m := &domain.ContactMeta{
				ID:         uuid.New().String(),
				ContactID:  contactID,
				ObjectType: domain.MetaCustomField,
				Key:        key,
				Value:      values[key],
				CreatedBy:  s.actorID,
				CreatedAt:  s.now(),
				UpdatedAt:  s.now(),
			}
			if err := s.meta.Insert(ctx, m); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := s.meta.UpdateValue(ctx, existing.ID, values[key]); err != nil {
				return err
			}
		}
	}
	return nil
}

// CustomFields returns the contact's custom field values limited to the keys
// configured in the field catalog.
func (s *Service) CustomFields(ctx context.Context, contactID string) (map[string]string, error) {
	out := map[string]string{}
	if s.catalog == nil {
		return out, nil
	}
	defs, err := s.catalog.CustomFieldDefs(ctx)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(defs))
	for _, d := range defs {
		keys = append(keys, d.Slug)
	}
	rows, err := s.meta.ListByKeys(ctx, contactID, keys)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

// Stats returns the contact's engagement counters, read fresh from the
// campaign email store on every call.
func (s *Service) Stats(ctx context.Context, contactID string) (domain.EngagementStats, error) {
	return s.stats.EngagementCounts(ctx, contactID)
}

// SendDoubleOptIn triggers the double opt-in confirmation email for a
// contact. Delivery is delegated entirely to the mailer.
func (s *Service) SendDoubleOptIn(ctx context.Context, contactID string) error {
	c, err := s.contacts.Get(ctx, contactID)
	if err != nil {
		return err
	}
	return s.mailer.SendDoubleOptIn(ctx, c)
}

// publish fires a classification event. Event delivery is fire-and-forget:
// a broker failure is logged, never surfaced to the business operation.
func (s *Service) publish(ctx context.Context, t events.Type, c *domain.Contact, ids []string) {
	err := s.bus.Publish(ctx, events.Event{
		Type:      t,
		ContactID: c.ID,
		Email:     c.Email,
		ObjectIDs: ids,
		At:        s.now(),
	})
	if err != nil {
		logger.Warn("event publish failed", "type", string(t), "contact_id", c.ID, "error", err.Error())
	}
}

// diff returns the members of want not present in have, preserving order.
func diff(want, have []string) []string {
	haveSet := make(map[string]bool, len(have))
	for _, id := range have {
		haveSet[id] = true
	}
	var out []string
	for _, id := range want {
		if !haveSet[id] {
			out = append(out, id)
			haveSet[id] = true
		}
	}
	return out
}

// intersect returns the members of want present in have, preserving order.
func intersect(want, have []string) []string {
	haveSet := make(map[string]bool, len(have))
	for _, id := range have {
		haveSet[id] = true
	}
	var out []string
	for _, id := range want {
		if haveSet[id] {
			out = append(out, id)
			haveSet[id] = false
		}
	}
	return out
}
