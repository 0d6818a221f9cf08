package api

type RunRequest struct {
	Language string `json:"language" binding:"required,oneof=python java c cpp"`
	Code     string `json:"code" binding:"required"`
}

type RunResponse struct {
	Stdout        string   `json:"stdout"`
	Stderr        string   `json:"stderr"`
	CompileStdout string   `json:"compileStdout"`
	CompileStderr string   `json:"compileStderr"`
	Output        *string  `json:"output"`
	OutputLines   []string `json:"outputLines"`
	ExitCode      int      `json:"exitCode"`
	CompileExit   *int     `json:"compileExitCode"`
	Error         *string  `json:"error"`
	ErrorType     *string  `json:"errorType"`
}
