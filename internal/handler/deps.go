package handler

import (
	"skillswap/internal/app/chat"
	"skillswap/internal/configs"
)

// AppDeps bundles the long-lived components shared by the HTTP handlers.
type AppDeps struct {
	Config   *configs.AppConfig
	Registry *chat.Registry
	Gateway  *Gateway
}
