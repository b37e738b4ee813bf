package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matchbase/marketplace/internal/oidc"
)

func TestMintTokenIsAcceptedByVerifier(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	cmd := mintTokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--sub", "ops", "--scope", "admin"})
	require.NoError(t, cmd.Execute())

	tok, err := oidc.NewHMACVerifier("cli-secret").Verify(cmd.Context(), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "ops", claims["sub"])
	require.Equal(t, "admin", claims["scope"])
}

func TestMintTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cmd := mintTokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--sub", "ops"})
	require.Error(t, cmd.Execute())
}

func TestReconcileRejectsUnknownKind(t *testing.T) {
	cmd := reconcileCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"uid-1", "--kind", "robots"})
	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown account kind")
}
