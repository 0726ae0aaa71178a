package providers

import (
	"github.com/samber/do/v2"

	"github.com/rentwise/rentwise-server/internal/config"
	"github.com/rentwise/rentwise-server/internal/logger"
	"github.com/rentwise/rentwise-server/internal/notify"
	"github.com/rentwise/rentwise-server/internal/service"
)

// ProvideUserDirectory provides the user directory.
func ProvideUserDirectory(i do.Injector) (*service.UserDirectory, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUserDirectory(storeHandle.Store, log.Component("users"), cfg.Storage.Timeout), nil
}

// ProvidePropertyService provides the property service.
func ProvidePropertyService(i do.Injector) (*service.PropertyService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPropertyService(storeHandle.Store, log.Component("properties"), cfg.Storage.Timeout), nil
}

// ProvideConversationService provides the conversation side-channel.
func ProvideConversationService(i do.Injector) (*service.ConversationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewConversationService(storeHandle.Store, log.Component("conversations"), cfg.Storage.Timeout), nil
}

// ProvideNotificationService provides the notification inbox service.
func ProvideNotificationService(i do.Injector) (*service.NotificationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNotificationService(storeHandle.Store, log.Component("notifications"), cfg.Storage.Timeout), nil
}

// ProvideNotifier provides the dispatcher that persists notifications and
// pushes them to connected clients.
func ProvideNotifier(i do.Injector) (*notify.Dispatcher, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return notify.NewDispatcher(storeHandle.Store, sseHandle.Manager, log.Component("notify")), nil
}

// ProvideInvitationService provides the invitation orchestrator.
func ProvideInvitationService(i do.Injector) (*service.InvitationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	conversations := do.MustInvoke[*service.ConversationService](i)
	notifier := do.MustInvoke[*notify.Dispatcher](i)
	users := do.MustInvoke[*service.UserDirectory](i)

	return service.NewInvitationService(storeHandle.Store, conversations, notifier, users, log.Component("invitations"), service.InvitationConfig{
		TTL:            cfg.Invitation.TTL,
		StorageTimeout: cfg.Storage.Timeout,
	}), nil
}
