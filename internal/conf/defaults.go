// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default phase ids of the target system, keyed by legacy phase type id.
var defaultPhaseNames = map[string]map[string]string{
	"1":  {"name": "Registration", "phaseid": "a93544bc-c165-4af4-b55e-18f3593b457a"},
	"2":  {"name": "Submission", "phaseid": "6950164f-3c5e-4bdc-abc8-22aaf5a1bd49"},
	"4":  {"name": "Review", "phaseid": "aa5a3f78-79e0-4bf7-93ff-b11e8f5b398b"},
	"5":  {"name": "Appeals", "phaseid": "1c24cfb3-5b0a-4dbd-b6bd-4b0dff5349c6"},
	"6":  {"name": "Appeals Response", "phaseid": "797a6af7-cd3f-4436-9fca-9679f773bee9"},
	"15": {"name": "Checkpoint Submission", "phaseid": "d8a2cdbe-84d1-4687-ab75-78a6a7efdcc8"},
}

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("legacy.driver", "mysql")
	v.SetDefault("legacy.dialect", DialectStandard)
	v.SetDefault("legacy.dsn", "")
	v.SetDefault("legacy.maxopenconns", 12)
	v.SetDefault("legacy.slowquerythreshold", 2*time.Second)

	v.SetDefault("docstore.driver", "surrealdb")
	v.SetDefault("docstore.url", "ws://localhost:8000/rpc")
	v.SetDefault("docstore.namespace", "challenges")
	v.SetDefault("docstore.database", "challenges")
	v.SetDefault("docstore.username", "root")
	v.SetDefault("docstore.password", "")
	v.SetDefault("docstore.challengetable", "challenge")
	v.SetDefault("docstore.challengetypetable", "challenge_type")

	v.SetDefault("search.addresses", []string{"http://localhost:9200"})
	v.SetDefault("search.username", "")
	v.SetDefault("search.password", "")
	v.SetDefault("search.challengeindex", "challenge")
	v.SetDefault("search.challengetype", "_doc")
	v.SetDefault("search.challengetypeindex", "challenge_type")
	v.SetDefault("search.challengetypetype", "_doc")
	v.SetDefault("search.refresh", "")

	v.SetDefault("api.timelineurl", "http://localhost:4000/v5/timeline-templates")
	v.SetDefault("api.projectsurl", "http://localhost:4000/v5/projects")
	v.SetDefault("api.termsurl", "http://localhost:4000/v5/terms")
	v.SetDefault("api.groupsurl", "http://localhost:4000/v5/groups")
	v.SetDefault("api.challengetypesurl", "http://localhost:4000/v4/challenge-types")
	v.SetDefault("api.termsperpage", 100)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.requestspersecond", 0.0)
	v.SetDefault("api.burst", 1)

	v.SetDefault("auth.tokenurl", "")
	v.SetDefault("auth.clientid", "")
	v.SetDefault("auth.clientsecret", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.scopes", []string{})

	v.SetDefault("migration.mode", ModeNormal)
	v.SetDefault("migration.batchsize", 100)
	v.SetDefault("migration.startskip", 0)
	v.SetDefault("migration.maxpages", 0)
	v.SetDefault("migration.createdafter", "")
	v.SetDefault("migration.enddatepolicy", EndDateLastPhase)
	v.SetDefault("migration.concurrency", 8)

	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.dsn", "ledger.db")

	v.SetDefault("logging.defaultlevel", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.console.format", "text")
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", "logs/challenge-migration.log")
	v.SetDefault("logging.fileoutput.level", "debug")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9090")

	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.onlyonfailure", false)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")

	v.SetDefault("phasenames", defaultPhaseNames)
}
