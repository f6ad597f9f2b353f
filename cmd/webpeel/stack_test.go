package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webpeel/webpeel/config"
)

func TestBuildStackRetainsBackgroundHandles(t *testing.T) {
	cfg := config.Load()
	cfg.DNS.Hosts = nil

	st, err := buildStack(cfg, false)
	require.NoError(t, err)

	// close() stops every background loop, so each owner must be on
	// the stack.
	require.NotNil(t, st.fetcher)
	require.NotNil(t, st.governor)
	require.NotNil(t, st.resolver)
	require.NotNil(t, st.jobs)

	st.close()
}
