package v1

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowstate-app/gateway/internal/config"
	"github.com/flowstate-app/gateway/internal/httpclient"
	"github.com/flowstate-app/gateway/internal/logger"
	"github.com/flowstate-app/gateway/internal/server/validator"
	"github.com/flowstate-app/gateway/pkg/api"
)

const (
	pollInterval    = 500 * time.Millisecond
	pollMaxAttempts = 60 // 30s total
	runTimeoutSec   = 10
)

// languageIDs maps supported languages onto Judge0 CE language IDs:
// Python 3, Java, C (GCC 9.2), C++ (GCC 9.2).
var languageIDs = map[string]int{
	"python": 71,
	"java":   62,
	"c":      50,
	"cpp":    54,
}

// Judge0 statuses 1 (In Queue) and 2 (Processing) are non-terminal.
func isPending(statusID int) bool {
	return statusID == 1 || statusID == 2
}

func errorTypeFor(statusID int, description string) string {
	switch {
	case statusID == 3:
		return "" // Accepted
	case statusID == 6:
		return "Compilation Error"
	case statusID >= 7 && statusID <= 12:
		return "RuntimeError"
	case statusID == 5:
		return "TimeLimitExceeded"
	case statusID == 13:
		return "InternalError"
	case statusID == 14:
		return "ExecFormatError"
	}
	if description != "" {
		return description
	}
	return "Error"
}

type submission struct {
	Token    string `json:"token"`
	StatusID int    `json:"status_id"`
	Status   *struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
}

func (s *submission) statusID() int {
	if s.Status != nil {
		return s.Status.ID
	}
	return s.StatusID
}

func (s *submission) description() string {
	if s.Status != nil {
		return s.Status.Description
	}
	return ""
}

type RunHandler struct {
	cfg    config.Judge0Config
	client httpclient.HTTPClient
}

func NewRunHandler(cfg config.Judge0Config, client httpclient.HTTPClient) *RunHandler {
	return &RunHandler{cfg: cfg, client: client}
}

func (h *RunHandler) headers() map[string]string {
	headers := map[string]string{}
	if h.cfg.RapidAPIKey != "" && h.cfg.RapidAPIHost != "" {
		headers["X-RapidAPI-Key"] = h.cfg.RapidAPIKey
		headers["X-RapidAPI-Host"] = h.cfg.RapidAPIHost
	} else if h.cfg.AuthToken != "" {
		headers["X-Auth-Token"] = h.cfg.AuthToken
	}
	return headers
}

// Run handles POST /api/run: submit code to Judge0, poll until terminal, and
// normalize the outcome.
func (h *RunHandler) Run(c *gin.Context) {
	var req api.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Missing language or code",
			"errorType": "BadRequest",
			"fields":    validator.ParseError(err),
		})
		return
	}

	languageID := languageIDs[req.Language]

	createURL := strings.TrimRight(h.cfg.BaseURL, "/") + "/submissions?base64_encoded=false&wait=false"
	var created submission
	_, err := httpclient.SendRequest(c.Request.Context(), h.client, "POST", createURL, h.headers(), map[string]interface{}{
		"source_code":     req.Code,
		"language_id":     languageID,
		"stdin":           "",
		"cpu_time_limit":  runTimeoutSec,
		"wall_time_limit": runTimeoutSec + 2,
	}, &created)
	if err != nil {
		status, resp := h.createError(err)
		c.JSON(status, resp)
		return
	}

	if created.Token == "" {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Judge0 did not return a submission token",
			"errorType": "ServiceError",
		})
		return
	}

	last := submission{StatusID: 1}
	getURL := strings.TrimRight(h.cfg.BaseURL, "/") + "/submissions/" + created.Token + "?base64_encoded=false"
	for i := 0; i < pollMaxAttempts; i++ {
		select {
		case <-c.Request.Context().Done():
			return
		case <-time.After(pollInterval):
		}

		last = submission{}
		if _, err := httpclient.SendRequest(c.Request.Context(), h.client, "GET", getURL, h.headers(), nil, &last); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":     "Judge0 get submission failed: " + err.Error(),
				"errorType": "ServiceError",
			})
			return
		}
		if !isPending(last.statusID()) {
			break
		}
	}

	c.JSON(http.StatusOK, h.buildResponse(&last))
}

// createError maps a failed submission POST into the client-facing shape.
func (h *RunHandler) createError(err error) (int, gin.H) {
	ue, ok := httpclient.AsUpstreamError(err)
	if !ok {
		logger.Error("judge0 submission failed", zap.Error(err))
		return http.StatusInternalServerError, gin.H{"error": err.Error(), "errorType": "ServerError"}
	}

	message := string(ue.Body)
	errorType := "ServiceError"

	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if jsonErr := json.Unmarshal(ue.Body, &parsed); jsonErr == nil {
		msg := parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
		if strings.Contains(strings.ToLower(msg), "queue is full") {
			errorType = "QueueFull"
			message = "Judge0 queue is full. Try again in a moment."
		} else if ue.StatusCode == http.StatusUnauthorized {
			errorType = "AuthError"
			message = "Judge0 authentication failed. Check JUDGE0_AUTH_TOKEN or RapidAPI key."
		}
	}

	return http.StatusBadGateway, gin.H{"error": message, "errorType": errorType}
}

var lineSplit = regexp.MustCompile(`\r?\n`)

func toLines(s *string) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, line := range lineSplit.Split(strings.TrimSpace(*s), -1) {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *RunHandler) buildResponse(last *submission) api.RunResponse {
	statusID := last.statusID()
	description := last.description()

	outputLines := toLines(last.CompileOutput)
	outputLines = append(outputLines, toLines(last.Stdout)...)
	outputLines = append(outputLines, toLines(last.Stderr)...)
	if last.Message != nil && strings.TrimSpace(*last.Message) != "" {
		outputLines = append(outputLines, strings.TrimSpace(*last.Message))
	}
	if outputLines == nil {
		outputLines = []string{}
	}

	errorType := errorTypeFor(statusID, description)
	compileFailed := statusID == 6
	runFailed := statusID >= 4 && statusID != 6 && statusID != 3

	resp := api.RunResponse{
		Stdout:        deref(last.Stdout),
		Stderr:        deref(last.Stderr),
		CompileStderr: deref(last.CompileOutput),
		OutputLines:   outputLines,
	}

	if joined := strings.TrimSpace(strings.Join(outputLines, "\n")); joined != "" {
		resp.Output = &joined
	}
	if runFailed {
		resp.ExitCode = 1
	}
	if compileFailed {
		one := 1
		resp.CompileExit = &one
	}
	if compileFailed || runFailed {
		parts := []string{}
		for _, p := range []*string{last.CompileOutput, last.Stderr, last.Message} {
			if p != nil && *p != "" {
				parts = append(parts, *p)
			}
		}
		msg := strings.TrimSpace(strings.Join(parts, "\n"))
		if msg == "" {
			msg = description
		}
		resp.Error = &msg
	}
	if errorType != "" {
		resp.ErrorType = &errorType
	}
	return resp
}
