package core

import "log/slog"

type Credentials struct {
	EmployeeId string
	Password   string
	Airline    string
}

// LogValue keeps the password out of every log line.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("employee_id", c.EmployeeId),
		slog.String("airline", c.Airline),
		slog.Bool("password_set", c.Password != ""),
	)
}

func (c Credentials) String() string {
	return c.EmployeeId + "@" + c.Airline
}
