package builder

import (
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestApp_RunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	app := &App{
		server: &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()},
		logger: zap.NewNop(),
	}

	assert.Error(t, app.Run())
}
