package listing

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MaizeAIBackend/models"
	"MaizeAIBackend/testutil"
)

func TestParseQueryDropsAll(t *testing.T) {
	q := ParseQuery(url.Values{"q": {" rust "}, "risk": {"all"}, "status": {"pending"}}, "risk", "status", "role")
	assert.Equal(t, "rust", q.Search)
	assert.Equal(t, map[string]string{"status": "pending"}, q.Filters)
}

func TestFilterDiseases(t *testing.T) {
	catalogue := testutil.Catalogue()

	got := Filter(catalogue, ParseQuery(url.Values{"q": {"LEAF"}}, "risk"), DiseaseFields)
	require.Len(t, got, 2)
	assert.Equal(t, "nlb", got[0].ID)
	assert.Equal(t, "gls", got[1].ID)

	got = Filter(catalogue, ParseQuery(url.Values{"q": {"leaf"}, "risk": {"medium"}}, "risk"), DiseaseFields)
	require.Len(t, got, 1)
	assert.Equal(t, "gls", got[0].ID)

	got = Filter(catalogue, ParseQuery(url.Values{"q": {"puccinia"}}, "risk"), DiseaseFields)
	require.Len(t, got, 1)
	assert.Equal(t, "cr", got[0].ID)

	assert.Len(t, Filter(catalogue, Query{}, DiseaseFields), 3)
}

func TestFilterUsersByRole(t *testing.T) {
	users := []models.User{
		{Name: "Amina", Email: "amina@farm.ke", Role: models.RoleFarmer},
		{Name: "Otieno", Email: "otieno@farm.ke", Role: models.RoleAdmin},
		{Name: "Baraka", Email: "baraka@mail.com", Role: models.RoleUser},
	}
	got := Filter(users, ParseQuery(url.Values{"q": {"farm.ke"}, "role": {"admin"}}, "role"), UserFields)
	require.Len(t, got, 1)
	assert.Equal(t, "Otieno", got[0].Name)
}

func TestFilterApprovalsSearchesRequester(t *testing.T) {
	items := []models.AdminApprovalRequest{
		{ID: "a1", Reason: "extension officer", Status: models.ApprovalPending, User: &models.UserSummary{Name: "Amina"}},
		{ID: "a2", Reason: "cooperative lead", Status: models.ApprovalRejected},
	}
	got := Filter(items, ParseQuery(url.Values{"q": {"amina"}}, "status"), ApprovalFields)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}

func TestFailedPageEncodesEmptyItems(t *testing.T) {
	b, err := json.Marshal(Failed[models.Disease]("Failed to load diseases"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"total":0,"error":"Failed to load diseases"}`, string(b))

	b, err = json.Marshal(NewPage[models.User](nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"total":0}`, string(b))
}
