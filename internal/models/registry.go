package models

// IDRegistry holds the identifiers harvested from experiment archives.
// It is filled through a RegistryBuilder and is read-only afterwards.
type IDRegistry struct {
	experimentIDs   map[string]struct{}
	soilIDs         map[string]struct{}
	weatherIDs      map[string]struct{}
	experimentNames map[string]struct{}
	soilNames       map[string]struct{}
	weatherClimates map[string]struct{}
}

// RegistryCounts summarizes the size of every registry set.
type RegistryCounts struct {
	ExperimentIDs   int `json:"experimentIds" yaml:"experiment_ids" toml:"experiment_ids" msgpack:"experimentIds"`
	SoilIDs         int `json:"soilIds" yaml:"soil_ids" toml:"soil_ids" msgpack:"soilIds"`
	WeatherIDs      int `json:"weatherIds" yaml:"weather_ids" toml:"weather_ids" msgpack:"weatherIds"`
	ExperimentNames int `json:"exnames" yaml:"exnames" toml:"exnames" msgpack:"exnames"`
	SoilNames       int `json:"soilNames" yaml:"soil_names" toml:"soil_names" msgpack:"soilNames"`
	WeatherClimates int `json:"weatherClimates" yaml:"weather_climates" toml:"weather_climates" msgpack:"weatherClimates"`
}

// WeatherClimateKey joins a station id and climate id the way output tables reference them.
func WeatherClimateKey(wstID, climID string) string {
	return wstID + "|" + climID
}

func (r *IDRegistry) HasExperimentID(id string) bool  { return has(r.experimentIDs, id) }
func (r *IDRegistry) HasSoilID(id string) bool        { return has(r.soilIDs, id) }
func (r *IDRegistry) HasWeatherID(id string) bool     { return has(r.weatherIDs, id) }
func (r *IDRegistry) HasExperimentName(n string) bool { return has(r.experimentNames, n) }
func (r *IDRegistry) HasSoilName(n string) bool       { return has(r.soilNames, n) }
func (r *IDRegistry) HasWeatherClimate(k string) bool { return has(r.weatherClimates, k) }

// Counts returns the size of each set.
func (r *IDRegistry) Counts() RegistryCounts {
	if r == nil {
		return RegistryCounts{}
	}
	return RegistryCounts{
		ExperimentIDs:   len(r.experimentIDs),
		SoilIDs:         len(r.soilIDs),
		WeatherIDs:      len(r.weatherIDs),
		ExperimentNames: len(r.experimentNames),
		SoilNames:       len(r.soilNames),
		WeatherClimates: len(r.weatherClimates),
	}
}

func has(set map[string]struct{}, key string) bool {
	if set == nil {
		return false
	}
	_, ok := set[key]
	return ok
}

// RegistryBuilder accumulates identifiers for a single validation run.
type RegistryBuilder struct {
	reg   *IDRegistry
	built bool
}

// NewRegistryBuilder creates an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{reg: &IDRegistry{
		experimentIDs:   make(map[string]struct{}, 150),
		soilIDs:         make(map[string]struct{}, 25),
		weatherIDs:      make(map[string]struct{}, 25),
		experimentNames: make(map[string]struct{}, 150),
		soilNames:       make(map[string]struct{}, 25),
		weatherClimates: make(map[string]struct{}, 100),
	}}
}

func (b *RegistryBuilder) AddExperimentID(id string)  { b.add(b.reg.experimentIDs, id) }
func (b *RegistryBuilder) AddSoilID(id string)        { b.add(b.reg.soilIDs, id) }
func (b *RegistryBuilder) AddWeatherID(id string)     { b.add(b.reg.weatherIDs, id) }
func (b *RegistryBuilder) AddExperimentName(n string) { b.add(b.reg.experimentNames, n) }
func (b *RegistryBuilder) AddSoilName(n string)       { b.add(b.reg.soilNames, n) }

// AddWeatherClimate records a station/climate pair. Blank stations are ignored.
func (b *RegistryBuilder) AddWeatherClimate(wstID, climID string) {
	if wstID == "" {
		return
	}
	b.add(b.reg.weatherClimates, WeatherClimateKey(wstID, climID))
}

func (b *RegistryBuilder) add(set map[string]struct{}, key string) {
	if b.built {
		panic("models: registry modified after Build")
	}
	if key == "" {
		return
	}
	set[key] = struct{}{}
}

// Build freezes the builder and returns the registry.
func (b *RegistryBuilder) Build() *IDRegistry {
	b.built = true
	return b.reg
}
