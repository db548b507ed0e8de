package sonarqube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/projects/search", r.URL.Path)
		switch r.URL.Query().Get("projects") {
		case "my-app":
			fmt.Fprint(w, `{"paging":{"total":1},"components":[{"key":"my-app","name":"My App"}]}`)
		default:
			fmt.Fprint(w, `{"paging":{"total":0},"components":[]}`)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)

	t.Run("known key", func(t *testing.T) {
		exists, err := client.ComponentExists(context.Background(), "my-app")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("unknown key", func(t *testing.T) {
		exists, err := client.ComponentExists(context.Background(), "other-app")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
