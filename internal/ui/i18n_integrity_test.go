package ui

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-skycal/internal/config"
)

// usedKeys lists every translation key referenced by the UI.
var usedKeys = []string{
	config.TKeyWinTitle,
	config.TKeyWinUpcoming,
	config.TKeyWinEvents,
	config.TKeyMenuRetry,
	config.TKeyMenuSettings,
	config.TKeyMenuUpcoming,
	config.TKeyMenuEvents,
	config.TKeyTrayLoading,
	config.TKeyTrayFailed,
	config.TKeyTrayClock,
	config.TKeyTrayEvents,
	config.TKeyTrayEventsZero,
	config.TKeyTrayMayor,
	config.TKeyNotifDay,
	config.TKeyNotifError,
	config.TKeyStateFuture,
	config.TKeyStateActive,
	config.TKeyStatePast,
	config.TKeyDateFormat,
	config.TKeyLblLanguage,
	config.TKeyHelpLanguage,
	config.TKeyLblSource,
	config.TKeyLblURL,
	config.TKeyHelpURL,
	config.TKeyLblAPIKey,
	config.TKeyLblPort,
	config.TKeyHelpPort,
	config.TKeyLblHorizon,
	config.TKeyHelpHorizon,
	config.TKeyLblDays,
	config.TKeyLblGeneral,
	config.TKeyLblEnableRem,
	config.TKeyUnitDays,
	config.TKeyUnitHours,
	config.TKeyUnitMinutes,
	config.TKeyDirBefore,
	config.TKeyDirAfter,
	config.TKeyLblNotif,
	config.TKeyLblStartDay,
	config.TKeyBtnSave,
	config.TKeyBtnCancel,
	config.TKeyLblFooter,
	config.TKeyEvtSummary,
	config.TKeyColDate,
	config.TKeyColEvents,
	config.TKeyColState,
	config.TKeyErrPortReq,
	config.TKeyErrPortNum,
	config.TKeyErrPortRange,
	config.TKeyErrURL,
}

// TestI18nIntegrity ensures that every translation key defined in config.go
// exists in each embedded locale file, and flags orphans.
func TestI18nIntegrity(t *testing.T) {
	defined := make(map[string]bool, len(usedKeys))
	for _, k := range usedKeys {
		defined[k] = true
	}

	for _, lang := range config.SupportedLanguages {
		t.Run(lang, func(t *testing.T) {
			content, err := localeFS.ReadFile(localeDir + localePrefix + lang + config.ExtJSON)
			require.NoError(t, err, "Locale file must be embedded")

			var messages map[string]interface{}
			require.NoError(t, json.Unmarshal(content, &messages), "JSON must be valid")

			for key := range defined {
				_, exists := messages[key]
				assert.Truef(t, exists, "Key '%s' is missing in %s", key, lang)
			}

			for key := range messages {
				if strings.HasPrefix(key, "_") {
					continue
				}
				assert.Truef(t, defined[key], "Key '%s' in %s is not used by the UI", key, lang)
			}
		})
	}
}

// TestI18nPlurals ensures pluralized messages carry the mandatory "other" form.
func TestI18nPlurals(t *testing.T) {
	for _, lang := range config.SupportedLanguages {
		content, err := localeFS.ReadFile(localeDir + localePrefix + lang + config.ExtJSON)
		require.NoError(t, err)

		var messages map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(content, &messages))

		var plural map[string]string
		require.NoError(t, json.Unmarshal(messages[config.TKeyTrayEvents], &plural), lang)
		assert.Contains(t, plural, "other", lang)
	}
}
