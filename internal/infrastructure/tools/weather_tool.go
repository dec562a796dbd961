package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
)

// WeatherToolName 天气工具名称
const WeatherToolName = "get_weather"

const weatherDescription = "Get current weather information and forecasts for any city worldwide using WeatherAPI.com"

const weatherAPIBaseURL = "https://api.weatherapi.com/v1"

// WeatherParams 天气工具参数
type WeatherParams struct {
	City            string `json:"city" jsonschema:"description=City name (e.g. London or New York)"`
	CountryCode     string `json:"country_code,omitempty" jsonschema:"description=Optional 2-letter country code (e.g. US or GB or IN)"`
	IncludeForecast bool   `json:"include_forecast,omitempty" jsonschema:"description=Include weather forecast up to 10 days"`
	ForecastDays    int    `json:"forecast_days,omitempty" jsonschema:"description=Number of forecast days (1-10). Default is 5."`
}

// WeatherLocation 位置
type WeatherLocation struct {
	City      string `json:"city"`
	Country   string `json:"country"`
	Region    string `json:"region"`
	LocalTime string `json:"local_time"`
}

// CurrentWeather 当前天气
type CurrentWeather struct {
	Temperature   int     `json:"temperature"`
	FeelsLike     int     `json:"feels_like"`
	Condition     string  `json:"condition"`
	Humidity      int     `json:"humidity"`
	Pressure      float64 `json:"pressure"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDirection string  `json:"wind_direction"`
	Visibility    float64 `json:"visibility"`
	Cloudiness    int     `json:"cloudiness"`
	UVIndex       float64 `json:"uv_index"`
	IsDay         string  `json:"is_day"`
}

// ForecastDay 单日预报
type ForecastDay struct {
	Date           string  `json:"date"`
	TemperatureMin int     `json:"temperature_min"`
	TemperatureMax int     `json:"temperature_max"`
	Condition      string  `json:"condition"`
	ChanceOfRain   int     `json:"chance_of_rain"`
	ChanceOfSnow   int     `json:"chance_of_snow"`
	MaxWindSpeed   float64 `json:"max_wind_speed"`
	AvgHumidity    float64 `json:"avg_humidity"`
	UVIndex        float64 `json:"uv_index"`
	Sunrise        string  `json:"sunrise"`
	Sunset         string  `json:"sunset"`
}

// WeatherResult 天气工具结果
type WeatherResult struct {
	Success   bool            `json:"success"`
	Location  WeatherLocation `json:"location"`
	Current   CurrentWeather  `json:"current"`
	Forecast  []ForecastDay   `json:"forecast"`
	Timestamp string          `json:"timestamp"`
}

// weatherAPIResponse WeatherAPI current/forecast 共用响应
type weatherAPIResponse struct {
	Location struct {
		Name      string `json:"name"`
		Region    string `json:"region"`
		Country   string `json:"country"`
		LocalTime string `json:"localtime"`
	} `json:"location"`
	Current struct {
		TempC      float64 `json:"temp_c"`
		FeelsLikeC float64 `json:"feelslike_c"`
		Humidity   int     `json:"humidity"`
		PressureMB float64 `json:"pressure_mb"`
		VisKM      float64 `json:"vis_km"`
		WindKPH    float64 `json:"wind_kph"`
		WindDir    string  `json:"wind_dir"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
		Cloud int     `json:"cloud"`
		UV    float64 `json:"uv"`
		IsDay int     `json:"is_day"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC  float64 `json:"maxtemp_c"`
				MinTempC  float64 `json:"mintemp_c"`
				Condition struct {
					Text string `json:"text"`
				} `json:"condition"`
				ChanceOfRain int     `json:"daily_chance_of_rain"`
				ChanceOfSnow int     `json:"daily_chance_of_snow"`
				MaxWindKPH   float64 `json:"maxwind_kph"`
				AvgHumidity  float64 `json:"avghumidity"`
				UV           float64 `json:"uv"`
			} `json:"day"`
			Astro struct {
				Sunrise string `json:"sunrise"`
				Sunset  string `json:"sunset"`
			} `json:"astro"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

var errCityNotFound = errors.New("city not found")

// weatherClient WeatherAPI.com 客户端
type weatherClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func (c *weatherClient) lookup(ctx context.Context, params WeatherParams) (any, error) {
	if strings.TrimSpace(params.City) == "" {
		return failure("city is required"), nil
	}

	location := params.City
	if params.CountryCode != "" {
		location = params.City + "," + params.CountryCode
	}

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("q", location)
	query.Set("aqi", "no")

	endpoint := "/current.json"
	if params.IncludeForecast {
		days := params.ForecastDays
		if days <= 0 {
			days = 5
		}
		days = min(max(days, 1), 10)
		endpoint = "/forecast.json"
		query.Set("days", fmt.Sprintf("%d", days))
		query.Set("alerts", "no")
	}

	data, err := c.fetch(ctx, endpoint, query)
	if err != nil {
		if errors.Is(err, errCityNotFound) {
			return failure(fmt.Sprintf("City %q not found. Please check the spelling or try with country code.", params.City)), nil
		}
		return failure(err.Error()), nil
	}

	result := WeatherResult{
		Success: true,
		Location: WeatherLocation{
			City:      data.Location.Name,
			Country:   data.Location.Country,
			Region:    data.Location.Region,
			LocalTime: data.Location.LocalTime,
		},
		Current: CurrentWeather{
			Temperature:   int(math.Round(data.Current.TempC)),
			FeelsLike:     int(math.Round(data.Current.FeelsLikeC)),
			Condition:     data.Current.Condition.Text,
			Humidity:      data.Current.Humidity,
			Pressure:      data.Current.PressureMB,
			WindSpeed:     data.Current.WindKPH,
			WindDirection: data.Current.WindDir,
			Visibility:    data.Current.VisKM,
			Cloudiness:    data.Current.Cloud,
			UVIndex:       data.Current.UV,
			IsDay:         "night",
		},
		Forecast:  []ForecastDay{},
		Timestamp: now(),
	}
	if data.Current.IsDay == 1 {
		result.Current.IsDay = "day"
	}

	for _, d := range data.Forecast.ForecastDay {
		result.Forecast = append(result.Forecast, ForecastDay{
			Date:           d.Date,
			TemperatureMin: int(math.Round(d.Day.MinTempC)),
			TemperatureMax: int(math.Round(d.Day.MaxTempC)),
			Condition:      d.Day.Condition.Text,
			ChanceOfRain:   d.Day.ChanceOfRain,
			ChanceOfSnow:   d.Day.ChanceOfSnow,
			MaxWindSpeed:   d.Day.MaxWindKPH,
			AvgHumidity:    d.Day.AvgHumidity,
			UVIndex:        d.Day.UV,
			Sunrise:        d.Astro.Sunrise,
			Sunset:         d.Astro.Sunset,
		})
	}

	return result, nil
}

// fetch 请求 WeatherAPI 并解析响应
func (c *weatherClient) fetch(ctx context.Context, endpoint string, query url.Values) (*weatherAPIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, errCityNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("WeatherAPI.com authentication failed - check API key")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("WeatherAPI.com rate limit exceeded - try again later")
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("weather API error %d: %s", resp.StatusCode, string(body))
	}

	var data weatherAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}
	return &data, nil
}
