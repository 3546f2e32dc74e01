package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "camf-go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/camf.log")

	viper.SetDefault("storage.basedir", "storage")
	viper.SetDefault("storage.indexflushevery", 25)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "camf.db")

	viper.SetDefault("retry.maxattempts", 5)
	viper.SetDefault("retry.delay", 200*time.Millisecond)

	viper.SetDefault("cache.ttl", 60*time.Second)

	viper.SetDefault("maintenance.compactinterval", 24*time.Hour)
	viper.SetDefault("maintenance.analyzeinterval", 7*24*time.Hour)
	viper.SetDefault("maintenance.orphansweepinterval", 12*time.Hour)
}
