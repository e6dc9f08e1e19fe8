// internal/network/httpclient_test.go
package network

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Test Cases: Configuration and Defaults --

func TestNewDefaultClientConfig(t *testing.T) {
	config := NewDefaultClientConfig()

	assert.Equal(t, DefaultRequestTimeout, config.RequestTimeout)
	assert.Equal(t, DefaultResponseHeaderTimeout, config.ResponseHeaderTimeout)
	assert.Equal(t, DefaultMaxIdleConns, config.MaxIdleConns)
	assert.True(t, config.ForceHTTP2, "HTTP/2 should be preferred by default")
	assert.False(t, config.IgnoreTLSErrors)
	assert.NotNil(t, config.Logger)
}

func TestConfigureTLS_Defaults(t *testing.T) {
	tlsConfig := configureTLS(NewDefaultClientConfig())

	require.NotNil(t, tlsConfig)
	assert.Equal(t, uint16(requiredMinTLSVersion), tlsConfig.MinVersion)
	assert.False(t, tlsConfig.InsecureSkipVerify)
	assert.Equal(t, defaultSecureCipherSuites, tlsConfig.CipherSuites)
	assert.NotNil(t, tlsConfig.ClientSessionCache)
}

func TestConfigureTLS_CustomConfigIsClonedAndHardened(t *testing.T) {
	custom := &tls.Config{MinVersion: tls.VersionTLS10, ServerName: "cms.internal"}
	config := NewDefaultClientConfig()
	config.TLSConfig = custom
	config.IgnoreTLSErrors = true

	tlsConfig := configureTLS(config)

	assert.NotSame(t, custom, tlsConfig)
	assert.Equal(t, "cms.internal", tlsConfig.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
	assert.True(t, tlsConfig.InsecureSkipVerify)
	assert.Equal(t, uint16(tls.VersionTLS10), custom.MinVersion, "original must not be modified")
}

func TestNewHTTPTransport_ConfigurationMapping(t *testing.T) {
	config := NewDefaultClientConfig()
	config.MaxIdleConns = 55
	config.IdleConnTimeout = 99 * time.Second
	config.ResponseHeaderTimeout = 5 * time.Second

	transport := NewHTTPTransport(config)

	assert.Equal(t, 55, transport.MaxIdleConns)
	assert.Equal(t, 99*time.Second, transport.IdleConnTimeout)
	assert.Equal(t, 5*time.Second, transport.ResponseHeaderTimeout)
}

func TestNewHTTPTransport_NilConfig(t *testing.T) {
	transport := NewHTTPTransport(nil)
	assert.Equal(t, DefaultMaxIdleConns, transport.MaxIdleConns)
	assert.NotNil(t, transport.DialContext)
	assert.NotNil(t, transport.TLSClientConfig)
}

func TestNewHTTPTransport_ProxyConfiguration(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.example.com:8080")
	config := NewDefaultClientConfig()
	config.ProxyURL = proxyURL

	transport := NewHTTPTransport(config)
	require.NotNil(t, transport.Proxy)

	req, _ := http.NewRequest(http.MethodGet, "http://cms.example.com", nil)
	resultURL, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, proxyURL, resultURL)
}

func TestNewHTTPTransport_HTTP2(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		transport := NewHTTPTransport(NewDefaultClientConfig())
		assert.True(t, transport.ForceAttemptHTTP2)
		assert.Equal(t, []string{"h2", "http/1.1"}, transport.TLSClientConfig.NextProtos)
	})

	t.Run("disabled", func(t *testing.T) {
		config := NewDefaultClientConfig()
		config.ForceHTTP2 = false
		transport := NewHTTPTransport(config)
		assert.False(t, transport.ForceAttemptHTTP2)
		assert.Equal(t, []string{"http/1.1"}, transport.TLSClientConfig.NextProtos)
	})
}

// -- Test Cases: Client Behavior --

func TestNewClient_FollowsRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/redirected", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "landed")
	}))
	defer server.Close()

	resp, err := NewClient(nil).Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "landed", string(body))
}

func TestClient_TimeoutBehavior(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	config := NewDefaultClientConfig()
	config.RequestTimeout = 50 * time.Millisecond
	client := NewClient(config)

	_, err := client.Get(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Client.Timeout")
}

func TestClient_InsecureSkipVerify_Integration(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	t.Run("self-signed certificate is rejected by default", func(t *testing.T) {
		_, err := NewClient(nil).Get(server.URL)
		assert.Error(t, err)
	})

	t.Run("self-signed certificate is accepted when ignoring TLS errors", func(t *testing.T) {
		config := NewDefaultClientConfig()
		config.IgnoreTLSErrors = true
		resp, err := NewClient(config).Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
