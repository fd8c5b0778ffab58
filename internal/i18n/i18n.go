package i18n

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/ngwarden/resources"
)

const translationsFile = "i18n/translations.yml"

var state = struct {
	sync.RWMutex
	once            sync.Once
	translations    map[string]map[string]string
	defaultLanguage string
}{
	defaultLanguage: "fa",
}

func load() {
	content, err := resources.FS.ReadFile(translationsFile)
	if err != nil {
		log.WithError(err).Errorln("cant load i18n")
		return
	}
	dict := map[string]map[string]string{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		log.WithError(err).Errorln("cant unmarshal i18n")
		return
	}
	state.Lock()
	state.translations = dict
	state.Unlock()
}

// SetDefaultLanguage selects the language used when callers pass "".
func SetDefaultLanguage(lang string) {
	state.Lock()
	state.defaultLanguage = strings.ToLower(lang)
	state.Unlock()
}

func DefaultLanguage() string {
	state.RLock()
	defer state.RUnlock()
	return state.defaultLanguage
}

// Get returns the translation of key. English keys are returned verbatim, as
// is any key without a translation.
func Get(key, lang string) string {
	if lang == "" {
		lang = DefaultLanguage()
	}
	if strings.EqualFold(lang, "en") {
		return key
	}
	state.once.Do(load)

	state.RLock()
	defer state.RUnlock()
	if res, ok := state.translations[key][strings.ToUpper(lang)]; ok && res != "" {
		return res
	}
	log.WithField("key", key).WithField("lang", lang).Trace("no translation")
	return key
}
