package dig_container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mwalefaith2021/jjschool/apps/api/echo"
	"github.com/mwalefaith2021/jjschool/core"
	"github.com/mwalefaith2021/jjschool/storage/database"
)

func TestNew(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_DATABASE_ENGINE", database.EngineMemory)
	t.Setenv("TEST_EMAIL_BACKEND", "console")

	c := New()
	err := c.Invoke(func(conf *core.Config, store *database.Store, log core.DeliveryLog, server *echoapi.Server) {
		assert.True(t, conf.TestMode)
		assert.Equal(t, database.EngineMemory, store.Engine)
		assert.NotNil(t, log)
		assert.NotNil(t, server)
	})
	require.NoError(t, err)
}
