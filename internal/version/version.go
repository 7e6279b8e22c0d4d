// Package version хранит сведения о сборке, заполняемые через -ldflags "-X".
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

func GetVersion() string { return version }

func GetCommit() string { return commit }

func GetDate() string { return date }

// String собирает строку для логов при старте.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

// ClientID возвращает идентификатор клиента для брокеров сообщений.
func ClientID(service string) string {
	return service + "/" + version
}
