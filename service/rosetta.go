package service

const (
	MiddlewareVersion = "0.1.0"
	NodeVersion       = "1.0.0"
)
