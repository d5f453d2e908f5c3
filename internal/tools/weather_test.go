package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	want := map[int]string{
		0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
		45: "Fog", 48: "Depositing rime fog",
		51: "Light drizzle", 53: "Moderate drizzle", 55: "Dense drizzle",
		56: "Light freezing drizzle", 57: "Dense freezing drizzle",
		61: "Slight rain", 63: "Moderate rain", 65: "Heavy rain",
		66: "Light freezing rain", 67: "Heavy freezing rain",
		71: "Slight snow fall", 73: "Moderate snow fall", 75: "Heavy snow fall",
		77: "Snow grains",
		80: "Slight rain showers", 81: "Moderate rain showers", 82: "Violent rain showers",
		85: "Slight snow showers", 86: "Heavy snow showers",
		95: "Thunderstorm", 96: "Thunderstorm with slight hail", 99: "Thunderstorm with heavy hail",
	}
	require.Len(t, want, 28)

	for code := 0; code <= 99; code++ {
		text, mapped := want[code]
		if !mapped {
			text = "Unknown"
		}
		assert.Equal(t, text, Describe(code), "code %d", code)
	}
	for _, code := range []int{-1, 100, 1000} {
		assert.Equal(t, "Unknown", Describe(code), "code %d", code)
	}
}

func TestCardinal(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{22.5, "N"},
		{44, "NE"},
		{67.5, "E"},
		{90, "E"},
		{180, "S"},
		{270, "W"},
		{315, "NW"},
		{337.5, "N"},
		{359, "N"},
		{360, "N"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Cardinal(tt.deg), "bearing %v", tt.deg)
	}
}

const clearForecast = `{
  "hourly": {
    "temperature_2m": [15.2, 14.8],
    "relative_humidity_2m": [65, 70],
    "precipitation": [0.0, 0.1],
    "wind_speed_10m": [10.5, 9.0],
    "wind_direction_10m": [0, 10],
    "weather_code": [0, 1]
  }
}`

func TestWeather_Report(t *testing.T) {
	requests := make(chan *url.URL, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.URL
		_, _ = w.Write([]byte(clearForecast))
	}))
	defer srv.Close()

	wt := NewWeather(srv.URL, time.Second, nil)
	out := wt.Execute(context.Background(), WeatherCall{Latitude: 52.52, Longitude: 13.41})

	got := <-requests
	assert.Equal(t, "/v1/forecast", got.Path)
	assert.Equal(t, "52.52", got.Query().Get("latitude"))
	assert.Equal(t, "13.41", got.Query().Get("longitude"))
	assert.Equal(t, hourlyFields, got.Query().Get("hourly"))
	assert.Equal(t, "1", got.Query().Get("forecast_days"))

	want := "Weather Report:\n" +
		"• Condition: Clear sky\n" +
		"• Temperature: 15.2°C\n" +
		"• Humidity: 65%\n" +
		"• Wind: 10.5 km/h from N (0°)\n" +
		"• Precipitation: 0.0 mm\n"
	assert.Equal(t, want, out)
}

func TestWeather_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"hourly": [`))
		}},
		{"missing series", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"hourly": {"temperature_2m": [1]}}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			wt := NewWeather(srv.URL, time.Second, nil)
			assert.Equal(t, WeatherUnavailable, wt.Execute(context.Background(), WeatherCall{Latitude: 1, Longitude: 2}))
		})
	}
}

func TestWeather_Decode(t *testing.T) {
	wt := NewWeather("http://unused", time.Second, nil)

	call, err := wt.Decode(json.RawMessage(`{"latitude": 48.85, "longitude": 2.35}`))
	require.NoError(t, err)
	assert.Equal(t, WeatherCall{Latitude: 48.85, Longitude: 2.35}, call)

	for _, raw := range []string{
		`{"latitude": 48.85}`,
		`{"latitude": 91, "longitude": 0}`,
		`{"latitude": 0, "longitude": -181}`,
		`not json`,
	} {
		_, err := wt.Decode(json.RawMessage(raw))
		assert.Error(t, err, raw)
	}
}
