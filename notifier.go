package auth

import "context"

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, user *User, code int) error

// SendOTP implements Notifier.
func (f NotifierFunc) SendOTP(ctx context.Context, user *User, code int) error {
	if f == nil {
		return nil
	}
	return f(ctx, user, code)
}

// LogNotifier writes the code to the logger instead of delivering mail.
// Meant for development environments. The code itself is only logged at
// debug level.
type LogNotifier struct {
	logger Logger
}

func NewLogNotifier(logger Logger) *LogNotifier {
	return &LogNotifier{logger: defaultLogger(logger)}
}

func (n *LogNotifier) SendOTP(_ context.Context, user *User, code int) error {
	n.logger.Info("password recovery code issued", "user_id", user.ID.String())
	n.logger.Debug("password recovery code", "user_id", user.ID.String(), "email", user.Email, "code", code)
	return nil
}
