package notify_test

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matchbase/marketplace/internal/models"
	"github.com/matchbase/marketplace/internal/notify"
	"github.com/matchbase/marketplace/internal/testutil"
)

type sent struct {
	addr string
	to   []string
	msg  string
}

func newMailer(t *testing.T) (*notify.Mailer, *testutil.Env, *[]sent) {
	env := testutil.NewEnv()
	env.PutAccount(t, testutil.Org("c1"))
	env.PutAccount(t, testutil.Person("p1"))
	env.PutListing(t, testutil.Opportunity("L1", "c1"))
	m := notify.NewMailer(notify.Config{Host: "smtp.example.com", Port: "587", From: "noreply@example.com"}, env.Store)
	var out []sent
	m.SetSender(func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		out = append(out, sent{addr: addr, to: to, msg: string(msg)})
		return nil
	})
	return m, env, &out
}

func TestEntryMailsListingOwner(t *testing.T) {
	m, _, out := newMailer(t)
	err := m.Engaged(context.Background(), models.Engagement{UID: "p1", Kind: models.EngageEntry, Index: "matters", ObjectID: "L1"})
	require.NoError(t, err)
	require.Len(t, *out, 1)
	require.Equal(t, "smtp.example.com:587", (*out)[0].addr)
	require.Equal(t, []string{"c1@example.com"}, (*out)[0].to)
	require.Contains(t, (*out)[0].msg, "Go backend L1")
}

func TestRequestMailsTarget(t *testing.T) {
	m, _, out := newMailer(t)
	err := m.Engaged(context.Background(), models.Engagement{UID: "c1", Kind: models.EngageRequest, Index: "persons", ObjectID: "p1"})
	require.NoError(t, err)
	require.Equal(t, []string{"p1@example.com"}, (*out)[0].to)
}

func TestOtherKindsAreIgnored(t *testing.T) {
	m, _, out := newMailer(t)
	require.NoError(t, m.Engaged(context.Background(), models.Engagement{UID: "p1", Kind: models.EngageLike, Index: "matters", ObjectID: "L1"}))
	require.Empty(t, *out)
}

func TestUnconfigured(t *testing.T) {
	env := testutil.NewEnv()
	m := notify.NewMailer(notify.Config{}, env.Store)
	require.False(t, m.IsConfigured())
	require.Error(t, m.SendHTML([]string{"a@example.com"}, "s", "b"))
}
