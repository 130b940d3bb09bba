package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gopkg.in/h2non/gock.v1"

	ews "github.com/meszmate/ews-go"
)

const endpoint = "https://mail.example.com/EWS/Exchange.asmx"

func newTestTransport(creds Credentials, mods ...RequestModifier) *HTTPTransport {
	t := NewHTTPTransport(HTTPConfig{
		Endpoint:        endpoint,
		Client:          NewHTTPClient(time.Minute, false),
		StreamingClient: NewHTTPClient(0, false),
		Credentials:     creds,
		UserAgent:       "ews-go-test",
		Modifiers:       mods,
	})
	gock.InterceptClient(t.cfg.Client)
	gock.InterceptClient(t.cfg.StreamingClient)
	return t
}

// matchBody compares the raw request body. gock only matches bodies of the
// content types listed in gock.BodyTypes, and text/xml is not one of them.
func matchBody(want string) gock.MatchFunc {
	return func(req *http.Request, _ *gock.Request) (bool, error) {
		if req.Body == nil {
			return want == "", nil
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return false, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		return string(body) == want, nil
	}
}

func TestSend(t *testing.T) {
	defer gock.Off()

	gock.New("https://mail.example.com").
		Post("/EWS/Exchange.asmx").
		MatchHeader("Content-Type", "^text/xml; charset=utf-8$").
		MatchHeader("User-Agent", "^ews-go-test$").
		MatchHeader("X-Extra", "^1$").
		MatchHeader("X-Modified", "^yes$").
		BasicAuth("user", "secret").
		AddMatcher(matchBody("<envelope/>")).
		Reply(200).
		SetHeader("Content-Type", "text/xml").
		BodyString("<ok/>")

	tr := newTestTransport(BasicCredentials{Username: "user", Password: "secret"}, SetHeader("X-Modified", "yes"))
	resp, err := tr.Send(context.Background(), &Request{
		Action: "GetItem",
		Body:   []byte("<envelope/>"),
		Header: http.Header{"X-Extra": []string{"1"}},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<ok/>", string(body))
	assert.True(t, gock.IsDone())
}

func TestSendBodyMismatch(t *testing.T) {
	defer gock.Off()

	gock.New("https://mail.example.com").
		Post("/EWS/Exchange.asmx").
		AddMatcher(matchBody("<other/>")).
		Reply(200)

	tr := newTestTransport(nil)
	_, err := tr.Send(context.Background(), &Request{Action: "GetItem", Body: []byte("<envelope/>")})

	var cerr *ews.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "GetItem", cerr.Op)
	assert.False(t, gock.IsDone())
}

func TestSendStreamUsesStreamingClient(t *testing.T) {
	defer gock.Off()

	gock.New("https://mail.example.com").
		Post("/EWS/Exchange.asmx").
		MatchHeader("Keep-Alive", "300").
		Reply(200)

	tr := newTestTransport(nil)
	gock.RestoreClient(tr.cfg.Client)
	resp, err := tr.Send(context.Background(), &Request{Action: "GetStreamingEvents", Stream: true})
	require.NoError(t, err)
	resp.Body.Close()
	assert.True(t, gock.IsDone())
	assert.Zero(t, tr.cfg.StreamingClient.Timeout)
}

func TestSendNetworkError(t *testing.T) {
	defer gock.Off()

	gock.New("https://mail.example.com").
		Post("/EWS/Exchange.asmx").
		ReplyError(errors.New("connection refused"))

	tr := newTestTransport(nil)
	_, err := tr.Send(context.Background(), &Request{Action: "GetItem"})
	var cerr *ews.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "GetItem", cerr.Op)
	assert.Zero(t, cerr.StatusCode)
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, errors.New("token endpoint down")
}

func TestCredentials(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		want    string
		wantErr bool
	}{
		{"bearer", BearerCredentials{Token: "abc"}, "Bearer abc", false},
		{"empty bearer", BearerCredentials{}, "", true},
		{"oauth2", NewOAuth2Credentials(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"})), "Bearer tok", false},
		{"oauth2 failure", &OAuth2Credentials{Source: failingSource{}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, endpoint, nil)
			require.NoError(t, err)
			err = tt.creds.Apply(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Header.Get("Authorization"))
		})
	}
}

func TestSendCredentialError(t *testing.T) {
	defer gock.Off()
	tr := newTestTransport(BearerCredentials{})
	_, err := tr.Send(context.Background(), &Request{Action: "GetItem"})
	var cerr *ews.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "credentials")
}

func TestNewHTTPClient(t *testing.T) {
	oneShot := NewHTTPClient(30*time.Second, false)
	assert.Equal(t, 30*time.Second, oneShot.Timeout)
	assert.NotZero(t, oneShot.Transport.(*http.Transport).ResponseHeaderTimeout)

	stream := NewHTTPClient(0, true)
	tr := stream.Transport.(*http.Transport)
	assert.Zero(t, tr.ResponseHeaderTimeout)
	assert.Zero(t, tr.IdleConnTimeout)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestReadTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	r := ReadTimeout(pr, 50*time.Millisecond)

	go func() {
		_, _ = pw.Write([]byte("heartbeat"))
	}()
	buf := make([]byte, 64)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "heartbeat", string(buf[:n]))
	assert.False(t, r.TimedOut())

	start := time.Now()
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.True(t, r.TimedOut())
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = r.Read(buf)
	assert.ErrorIs(t, err, ErrReadTimeout)

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestReadTimeoutCloseUnblocksRead(t *testing.T) {
	pr, _ := io.Pipe()
	r := ReadTimeout(pr, time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := r.Read(make([]byte, 8))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.ErrClosedPipe)
		assert.False(t, r.TimedOut())
	case <-time.After(2 * time.Second):
		t.Fatal("read was not unblocked by Close")
	}
}
