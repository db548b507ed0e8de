package project

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonartrack/api/pkg/domain/shared"
)

func TestNew(t *testing.T) {
	t.Run("valid project", func(t *testing.T) {
		p, err := New("Payments", "https://sonar.example.com/", "com.example:payments")
		require.NoError(t, err)

		assert.False(t, p.ID.IsZero())
		assert.Equal(t, "https://sonar.example.com", p.BaseURL, "trailing slash is stripped")
		assert.True(t, p.SyncEnabled)
		assert.Equal(t, DefaultOptions(), p.Options)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := New("", "https://sonar.example.com", "key")
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = New("Payments", "https://sonar.example.com", "")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects relative or non-http url", func(t *testing.T) {
		_, err := New("Payments", "sonar.example.com", "key")
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = New("Payments", "ftp://sonar.example.com", "key")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestSetSchedule(t *testing.T) {
	p, err := New("Payments", "https://sonar.example.com", "key")
	require.NoError(t, err)

	require.NoError(t, p.SetSchedule("0 6 * * *"))
	assert.Equal(t, "0 6 * * *", p.SyncSchedule)

	assert.ErrorIs(t, p.SetSchedule("not a cron"), shared.ErrValidation)
	assert.Equal(t, "0 6 * * *", p.SyncSchedule, "invalid expression leaves schedule unchanged")

	require.NoError(t, p.SetSchedule(""))
	assert.Empty(t, p.SyncSchedule, "empty schedule means manual only")
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule(""))
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.ErrorIs(t, ValidateSchedule("61 * * * *"), shared.ErrValidation)
	assert.ErrorIs(t, ValidateSchedule("* * *"), shared.ErrValidation)
}

func TestCredentials(t *testing.T) {
	assert.True(t, Credentials{}.IsZero())
	assert.False(t, Credentials{Token: "tok"}.IsZero())
	assert.False(t, Credentials{Login: "admin", Password: "pw"}.IsZero())
}

func TestRecordSync(t *testing.T) {
	p, err := New("Payments", "https://sonar.example.com", "key")
	require.NoError(t, err)
	require.Nil(t, p.LastSyncAt)

	at := time.Now().UTC()
	p.RecordSync(at)
	require.NotNil(t, p.LastSyncAt)
	assert.Equal(t, at, *p.LastSyncAt)
	assert.Equal(t, at, p.UpdatedAt)
}
