// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "SnakeGuard-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/snakeguard.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("pipeline.confidencethreshold", 0.5)
	viper.SetDefault("pipeline.alertsenabled", true)
	viper.SetDefault("pipeline.alertradiuskm", 10.0)
	viper.SetDefault("pipeline.settingscachettl", 30*time.Second)
	viper.SetDefault("pipeline.polllimit", 10)
	viper.SetDefault("pipeline.pollmaxage", 24*time.Hour)
	viper.SetDefault("pipeline.pollminconfidence", 0.5)
	viper.SetDefault("pipeline.pollinterval", 60*time.Second)
	viper.SetDefault("pipeline.polldelay", 2*time.Second)

	viper.SetDefault("classifier.enabled", true)
	viper.SetDefault("classifier.model", "gemini-2.0-flash")
	viper.SetDefault("classifier.apikey", "")
	viper.SetDefault("classifier.timeout", 60*time.Second)
	viper.SetDefault("classifier.retries", 2)

	viper.SetDefault("notify.email.enabled", false)
	viper.SetDefault("notify.email.host", "localhost")
	viper.SetDefault("notify.email.port", 587)
	viper.SetDefault("notify.email.username", "")
	viper.SetDefault("notify.email.password", "")
	viper.SetDefault("notify.email.from", "alerts@snakeguard.local")
	viper.SetDefault("notify.email.usetls", true)

	viper.SetDefault("notify.sms.enabled", false)
	viper.SetDefault("notify.sms.url", "")
	viper.SetDefault("notify.sms.username", "")
	viper.SetDefault("notify.sms.password", "")
	viper.SetDefault("notify.sms.from", "")
	viper.SetDefault("notify.sms.timeout", 15*time.Second)

	viper.SetDefault("notify.webhook.enabled", false)
	viper.SetDefault("notify.webhook.url", "")
	viper.SetDefault("notify.webhook.timeout", 30*time.Second)

	viper.SetDefault("notify.globalemails", []string{})
	viper.SetDefault("notify.globalphonenumbers", []string{})
	viper.SetDefault("notify.defaultradiuskm", 10.0)
	viper.SetDefault("notify.highriskconfidence", 0.7)
	viper.SetDefault("notify.pacingpersecond", 2.0)
	viper.SetDefault("notify.pacingburst", 1)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "snakeguard.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "snakeguard")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "snakeguard")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)
}
