// conf/defaults.go baked-in values for every config key
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig registers a default for each known config key, so a
// partial config file still yields a complete Settings value.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Full-Noise")
	viper.SetDefault("main.timeas24h", true)
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "fullnoise.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", "Sunday")

	viper.SetDefault("visits.debug", false)
	viper.SetDefault("visits.interval", "10m")
	viper.SetDefault("visits.audiobaitwindow", "24h")
	viper.SetDefault("visits.maxvisits", 5000)
	viper.SetDefault("visits.querymax", 10000)

	viper.SetDefault("report.timezone", "Pacific/Auckland")
	viper.SetDefault("report.urlbase", "https://browse.cacophony.org.nz")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.log.enabled", false)
	viper.SetDefault("webserver.log.path", "webserver.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)
	viper.SetDefault("webserver.log.rotationday", "Sunday")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "fullnoise.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "fullnoise")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.passwordfile", "")
	viper.SetDefault("output.mysql.database", "fullnoise")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.debug", false)
	viper.SetDefault("sentry.dsn", "")
}
