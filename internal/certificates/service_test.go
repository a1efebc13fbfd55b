package certificates

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certificatePortal/internal/auth"
	"certificatePortal/internal/common"
	"certificatePortal/internal/render"
	"certificatePortal/internal/testutil"
	"certificatePortal/models"
	"certificatePortal/repository"
)

type fixture struct {
	svc      *Service
	records  *repository.RecordRepository
	registry *render.Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, "certs")
	records := repository.NewRecordRepository(d)
	registry, err := render.NewRegistry(repository.NewSettingRepository(d), nil)
	require.NoError(t, err)
	return fixture{svc: NewService(records, registry, nil), records: records, registry: registry}
}

var participant = &auth.Claims{UserID: "u1", Username: "p1", Role: models.RoleParticipant}

func TestFindByName_Empty(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.FindByName(context.Background(), "anyone")
	require.ErrorIs(t, err, common.ErrNotFound)
	require.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, "No data available. Please contact admin to upload student data.", common.Message(err))
}

func TestFindByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.records.Replace(ctx, []models.Record{
		{Name: "Asha", Certificate: "Winner", College: "MIT"},
		{Name: "Asha", Certificate: "Runner-up"},
		{Name: "Ravi", Certificate: "Participant"},
	})
	require.NoError(t, err)

	rec, err := f.svc.FindByName(ctx, "Asha")
	require.NoError(t, err)
	assert.Equal(t, models.Record{Name: "Asha", Certificate: "Winner", College: "MIT"}, *rec)

	_, err = f.svc.FindByName(ctx, "asha")
	require.ErrorIs(t, err, ErrNoRecord)
	assert.Equal(t, `No record found for "asha"`, common.Message(err))
}

func TestGenerateDocument_FollowsActiveTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.records.Replace(ctx, []models.Record{{Name: "Asha", Certificate: "Winner"}})
	require.NoError(t, err)

	doc, tmpl, err := f.svc.GenerateDocument(ctx, "Asha", participant)
	require.NoError(t, err)
	assert.Equal(t, models.TemplateClassic, tmpl)
	assert.Contains(t, string(doc), "of Achievement")

	_, err = f.registry.SetActive(ctx, "modern")
	require.NoError(t, err)

	doc, tmpl, err = f.svc.GenerateDocument(ctx, "Asha", participant)
	require.NoError(t, err)
	assert.Equal(t, models.TemplateModern, tmpl)
	assert.True(t, strings.Contains(string(doc), "OF EXCELLENCE"))
}

func TestGenerateDocument_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.GenerateDocument(ctx, "Asha", nil)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	_, _, err = f.svc.GenerateDocument(ctx, "Asha", participant)
	require.ErrorIs(t, err, ErrNoData)

	_, err = f.records.Replace(ctx, []models.Record{{Name: "Ravi"}})
	require.NoError(t, err)
	_, _, err = f.svc.GenerateDocument(ctx, "Asha", participant)
	require.ErrorIs(t, err, ErrNoRecord)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.RecordCount)
	assert.Equal(t, models.TemplateClassic, st.Template)
	assert.Equal(t, "No data uploaded yet", st.Message)

	_, err = f.records.Replace(ctx, []models.Record{{Name: "A"}, {Name: "B"}})
	require.NoError(t, err)
	st, err = f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.RecordCount)
	assert.Equal(t, "Database ready", st.Message)
}
