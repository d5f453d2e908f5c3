package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/time/rate"
)

const (
	WeatherToolName = "weather-tool"
	// WeatherUnavailable is the whole result whenever the forecast cannot be read.
	WeatherUnavailable = "Unable to fetch weather data."

	hourlyFields = "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m,wind_direction_10m,weather_code"
)

var weatherDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

var cardinalDirections = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Describe maps a WMO weather code to text; unmapped codes give "Unknown".
func Describe(code int) string {
	if d, ok := weatherDescriptions[code]; ok {
		return d
	}
	return "Unknown"
}

// Cardinal maps a wind bearing in degrees to one of eight compass points.
// Halfway bearings round to the even sector.
func Cardinal(degrees float64) string {
	idx := int(math.RoundToEven(degrees/45)) % 8
	if idx < 0 {
		idx += 8
	}
	return cardinalDirections[idx]
}

// WeatherCall asks for the current forecast at a coordinate.
type WeatherCall struct {
	Latitude  float64
	Longitude float64
}

func (WeatherCall) tool() string { return WeatherToolName }

// Weather reads the first hourly slot of an Open-Meteo forecast.
type Weather struct {
	baseURL string
	fetch   *fetcher
}

func NewWeather(baseURL string, timeout time.Duration, limiter *rate.Limiter) *Weather {
	return &Weather{baseURL: strings.TrimRight(baseURL, "/"), fetch: newFetcher(timeout, limiter)}
}

func (w *Weather) Spec() Spec {
	return Spec{
		Name:        WeatherToolName,
		Description: "Get the weather for a given location.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"latitude":  {Type: jsonschema.Number, Description: "latitude of the location"},
				"longitude": {Type: jsonschema.Number, Description: "longitude of the location"},
			},
			Required: []string{"latitude", "longitude"},
		},
	}
}

func (w *Weather) Decode(raw json.RawMessage) (Call, error) {
	var args struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args.Latitude == nil || args.Longitude == nil {
		return nil, errors.New("latitude and longitude are required")
	}
	if *args.Latitude < -90 || *args.Latitude > 90 {
		return nil, fmt.Errorf("latitude %v out of range", *args.Latitude)
	}
	if *args.Longitude < -180 || *args.Longitude > 180 {
		return nil, fmt.Errorf("longitude %v out of range", *args.Longitude)
	}
	return WeatherCall{Latitude: *args.Latitude, Longitude: *args.Longitude}, nil
}

// forecast keeps numbers as sent so the report echoes them verbatim.
type forecast struct {
	Hourly struct {
		Temperature   []json.Number `json:"temperature_2m"`
		Humidity      []json.Number `json:"relative_humidity_2m"`
		Precipitation []json.Number `json:"precipitation"`
		WindSpeed     []json.Number `json:"wind_speed_10m"`
		WindDirection []json.Number `json:"wind_direction_10m"`
		WeatherCode   []json.Number `json:"weather_code"`
	} `json:"hourly"`
}

func (w *Weather) Execute(ctx context.Context, call Call) string {
	c, ok := call.(WeatherCall)
	if !ok {
		return WeatherUnavailable
	}
	q := url.Values{}
	q.Set("latitude", fmt.Sprint(c.Latitude))
	q.Set("longitude", fmt.Sprint(c.Longitude))
	q.Set("hourly", hourlyFields)
	q.Set("forecast_days", "1")

	var fc forecast
	if err := w.fetch.getJSON(ctx, w.baseURL+"/v1/forecast?"+q.Encode(), &fc); err != nil {
		return WeatherUnavailable
	}
	report, err := formatReport(fc)
	if err != nil {
		return WeatherUnavailable
	}
	return report
}

func formatReport(fc forecast) (string, error) {
	h := fc.Hourly
	for _, series := range [][]json.Number{h.Temperature, h.Humidity, h.Precipitation, h.WindSpeed, h.WindDirection, h.WeatherCode} {
		if len(series) == 0 {
			return "", errors.New("forecast series missing")
		}
	}
	code, err := h.WeatherCode[0].Float64()
	if err != nil {
		return "", err
	}
	bearing, err := h.WindDirection[0].Float64()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Weather Report:\n")
	fmt.Fprintf(&b, "• Condition: %s\n", Describe(int(code)))
	fmt.Fprintf(&b, "• Temperature: %s°C\n", h.Temperature[0])
	fmt.Fprintf(&b, "• Humidity: %s%%\n", h.Humidity[0])
	fmt.Fprintf(&b, "• Wind: %s km/h from %s (%s°)\n", h.WindSpeed[0], Cardinal(bearing), h.WindDirection[0])
	fmt.Fprintf(&b, "• Precipitation: %s mm\n", h.Precipitation[0])
	return b.String(), nil
}
