package v1

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/flowstate-app/gateway/internal/config"
	"github.com/flowstate-app/gateway/internal/logger"
	"github.com/flowstate-app/gateway/internal/server/middleware"
	"github.com/flowstate-app/gateway/internal/tokenstore"
	"github.com/flowstate-app/gateway/pkg/api"
)

const spotifyAPIBase = "https://api.spotify.com/v1"

var spotifyScopes = []string{
	"user-read-currently-playing",
	"user-read-playback-state",
	"user-modify-playback-state",
}

var spotifyEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// SpotifyHandler bridges the client to the Spotify Web API. Tokens are held
// per session in the token store; the client never sees them.
type SpotifyHandler struct {
	oauth     *oauth2.Config
	tokens    *tokenstore.Store
	clientURL string
	client    *http.Client
}

func NewSpotifyHandler(cfg config.SpotifyConfig, clientURL string, tokens *tokenstore.Store) *SpotifyHandler {
	return &SpotifyHandler{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       spotifyScopes,
			Endpoint:     spotifyEndpoint,
		},
		tokens:    tokens,
		clientURL: clientURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *SpotifyHandler) configured() bool {
	return h.oauth.ClientID != "" && h.oauth.ClientSecret != ""
}

// Auth redirects the browser into the Spotify consent flow. The session ID
// rides along as the OAuth state so the callback can find its way back.
func (h *SpotifyHandler) Auth(c *gin.Context) {
	if !h.configured() {
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "Spotify is not configured on this server"})
		return
	}
	sessionID := middleware.SessionID(c)
	authURL := h.oauth.AuthCodeURL(sessionID, oauth2.SetAuthURLParam("show_dialog", "true"))
	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the OAuth exchange and bounces back to the client app.
func (h *SpotifyHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	if errParam := c.Query("error"); errParam != "" {
		h.redirectWithError(c, errParam)
		return
	}
	code := c.Query("code")
	if code == "" || state == "" {
		h.redirectWithError(c, "missing_code")
		return
	}

	token, err := h.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		logger.Error("spotify token exchange failed", zap.Error(err))
		h.redirectWithError(c, "token_exchange_failed")
		return
	}

	if err := h.tokens.SetTokens(state, token.AccessToken, token.RefreshToken, time.Until(token.Expiry)); err != nil {
		logger.Error("failed to store spotify tokens", zap.Error(err))
		h.redirectWithError(c, "token_storage_failed")
		return
	}

	c.Redirect(http.StatusFound, h.clientURL+"?spotify=connected")
}

func (h *SpotifyHandler) redirectWithError(c *gin.Context, reason string) {
	c.Redirect(http.StatusFound, h.clientURL+"?spotify_error="+url.QueryEscape(reason))
}

func (h *SpotifyHandler) Status(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	c.JSON(http.StatusOK, api.SpotifyStatusResponse{Connected: h.tokens.IsConnected(sessionID)})
}

func (h *SpotifyHandler) Disconnect(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	h.tokens.Disconnect(sessionID)
	c.JSON(http.StatusOK, gin.H{"disconnected": true})
}

// ensureFreshToken returns a usable access token, refreshing through the
// OAuth endpoint when the stored one has expired. Spotify does not always
// rotate the refresh token, in which case the old one stays.
func (h *SpotifyHandler) ensureFreshToken(ctx context.Context, sessionID string) (string, bool) {
	if !h.tokens.IsConnected(sessionID) {
		return "", false
	}
	if !h.tokens.IsExpired(sessionID) {
		return h.tokens.AccessToken(sessionID), true
	}

	refresh := h.tokens.RefreshToken(sessionID)
	if refresh == "" {
		h.tokens.Disconnect(sessionID)
		return "", false
	}

	src := h.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh})
	token, err := src.Token()
	if err != nil {
		logger.Warn("spotify token refresh failed", zap.Error(err))
		h.tokens.Disconnect(sessionID)
		return "", false
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = refresh
	}
	if err := h.tokens.SetTokens(sessionID, token.AccessToken, newRefresh, time.Until(token.Expiry)); err != nil {
		logger.Error("failed to store refreshed spotify tokens", zap.Error(err))
	}
	return token.AccessToken, true
}

type spotifyImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type spotifyPlayback struct {
	IsPlaying  bool `json:"is_playing"`
	ProgressMs int  `json:"progress_ms"`
	Item       *struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name   string         `json:"name"`
			Images []spotifyImage `json:"images"`
		} `json:"album"`
		DurationMs   int `json:"duration_ms"`
		ExternalURLs struct {
			Spotify string `json:"spotify"`
		} `json:"external_urls"`
	} `json:"item"`
}

// albumArt prefers the smallest image that is still at most 300px wide,
// falling back to the first one.
func albumArt(images []spotifyImage) string {
	best := ""
	bestWidth := 0
	for _, img := range images {
		if img.Width <= 300 && img.Width > bestWidth {
			best = img.URL
			bestWidth = img.Width
		}
	}
	if best == "" && len(images) > 0 {
		best = images[0].URL
	}
	return best
}

// NowPlaying handles GET /api/spotify/now-playing.
func (h *SpotifyHandler) NowPlaying(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	accessToken, ok := h.ensureFreshToken(c.Request.Context(), sessionID)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Spotify not connected"})
		return
	}

	resp, err := h.spotifyRequest(c.Request.Context(), "GET", "/me/player/currently-playing", accessToken)
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Spotify request failed"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		c.JSON(http.StatusOK, api.NowPlayingResponse{Playing: false})
		return
	}
	if resp.StatusCode == http.StatusUnauthorized {
		h.tokens.Disconnect(sessionID)
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Spotify not connected"})
		return
	}
	if resp.StatusCode >= 400 {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Spotify request failed"})
		return
	}

	var playback spotifyPlayback
	if err := json.NewDecoder(resp.Body).Decode(&playback); err != nil || playback.Item == nil {
		c.JSON(http.StatusOK, api.NowPlayingResponse{Playing: false})
		return
	}

	artists := make([]string, 0, len(playback.Item.Artists))
	for _, a := range playback.Item.Artists {
		artists = append(artists, a.Name)
	}

	c.JSON(http.StatusOK, api.NowPlayingResponse{
		Playing: playback.IsPlaying,
		Track: &api.SpotifyTrack{
			Title:      playback.Item.Name,
			Artist:     strings.Join(artists, ", "),
			Album:      playback.Item.Album.Name,
			AlbumArt:   albumArt(playback.Item.Album.Images),
			DurationMs: playback.Item.DurationMs,
			ProgressMs: playback.ProgressMs,
			URL:        playback.Item.ExternalURLs.Spotify,
		},
	})
}

func (h *SpotifyHandler) Play(c *gin.Context)     { h.playerCommand(c, "PUT", "/me/player/play") }
func (h *SpotifyHandler) Pause(c *gin.Context)    { h.playerCommand(c, "PUT", "/me/player/pause") }
func (h *SpotifyHandler) Next(c *gin.Context)     { h.playerCommand(c, "POST", "/me/player/next") }
func (h *SpotifyHandler) Previous(c *gin.Context) { h.playerCommand(c, "POST", "/me/player/previous") }

func (h *SpotifyHandler) playerCommand(c *gin.Context, method, path string) {
	sessionID := middleware.SessionID(c)
	accessToken, ok := h.ensureFreshToken(c.Request.Context(), sessionID)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Spotify not connected"})
		return
	}

	resp, err := h.spotifyRequest(c.Request.Context(), method, path, accessToken)
	if err != nil {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Spotify request failed"})
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		// 404 means no active device, which the client surfaces as a hint.
		if resp.StatusCode == http.StatusNotFound {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "No active Spotify device"})
			return
		}
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Spotify request failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SpotifyHandler) spotifyRequest(ctx context.Context, method, path, accessToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, spotifyAPIBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return h.client.Do(req)
}
