// conf/validate.go sanity checks applied to freshly loaded settings
package conf

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ValidateSettings checks the settings as a whole and reports every
// problem in one pass, so a broken config does not fail one field at a
// time.
func ValidateSettings(settings *Settings) error {
	return errors.Join(
		validateVisits(&settings.Visits),
		validateReport(&settings.Report),
		validateWebServer(&settings.WebServer),
		validateOutput(&settings.Output),
	)
}

// validateVisits bounds the aggregation parameters.
func validateVisits(settings *VisitsSettings) error {
	var errs []error

	// Zero would collapse every recording into its own visit.
	if settings.Interval <= 0 {
		errs = append(errs, errors.New("visits interval must be positive"))
	}
	if settings.AudioBaitWindow < 0 {
		errs = append(errs, errors.New("visits audio bait window must be non-negative"))
	}
	if settings.MaxVisits < 1 {
		errs = append(errs, errors.New("visits maxvisits must be at least 1"))
	}
	if settings.QueryMax < 1 {
		errs = append(errs, errors.New("visits querymax must be at least 1"))
	}

	return errors.Join(errs...)
}

// validateReport rejects unusable rendering settings early; a bad time
// zone would otherwise only surface on the first export.
func validateReport(settings *ReportSettings) error {
	if settings.TimeZone != "" {
		if _, err := time.LoadLocation(settings.TimeZone); err != nil {
			return fmt.Errorf("report timezone is not a valid IANA zone: %w", err)
		}
	}

	if settings.URLBase != "" {
		u, err := url.Parse(settings.URLBase)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("report urlbase must be an absolute URL, got %q", settings.URLBase)
		}
	}

	return nil
}

func validateWebServer(settings *WebServerSettings) error {
	if settings.Enabled && settings.Port == "" {
		return errors.New("webserver port is required when the server is enabled")
	}
	return nil
}

// validateOutput requires one usable database destination.
func validateOutput(settings *OutputSettings) error {
	if !settings.SQLite.Enabled && !settings.MySQL.Enabled {
		return errors.New("at least one database output must be enabled")
	}

	var errs []error
	if settings.MySQL.Enabled {
		if settings.MySQL.Username == "" {
			errs = append(errs, errors.New("mysql username is required"))
		}
		if settings.MySQL.Database == "" {
			errs = append(errs, errors.New("mysql database is required"))
		}
		if settings.MySQL.Host == "" {
			errs = append(errs, errors.New("mysql host is required"))
		}
		if settings.MySQL.Port == "" {
			errs = append(errs, errors.New("mysql port is required"))
		}
	}
	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		errs = append(errs, errors.New("sqlite path is required when sqlite is enabled"))
	}

	return errors.Join(errs...)
}
