package strava

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sofin/app/utils"
	"time"
)

type Client struct {
	ClientId     string
	ClientSecret string
	RedirectUri  string
}

type AuthReqBody struct {
	ClientId     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	GrantType    string `json:"grant_type"`
}

type AuthResp struct {
	RefreshToken string      `json:"refresh_token"`
	AccessToken  string      `json:"access_token"`
	Athlete      AthleteInfo `json:"athlete"`
	ExpiresAt    int64       `json:"expires_at"`
}

type AthleteInfo struct {
	Id        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

type AthleteStats struct {
	AllRideTotals ActivityTotals `json:"all_ride_totals"`
}

type ActivityTotals struct {
	Count         int64   `json:"count"`
	Distance      float64 `json:"distance"` // meters
	MovingTime    int64   `json:"moving_time"`
	ElapsedTime   int64   `json:"elapsed_time"`
	ElevationGain float64 `json:"elevation_gain"`
}

// SummaryActivity is one raw entry of the athlete activities listing. Raw
// keeps the provider payload byte for byte.
type SummaryActivity struct {
	Id                 int64   `json:"id"`
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	Distance           float64 `json:"distance"`             // meters
	TotalElevationGain float64 `json:"total_elevation_gain"` // meters
	AverageSpeed       float64 `json:"average_speed"`        // m/s
	MovingTime         int64   `json:"moving_time"`
	StartDate          string  `json:"start_date"`

	Raw json.RawMessage `json:"-"`
}

func (a *SummaryActivity) UnmarshalJSON(data []byte) error {
	type alias SummaryActivity
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*a = SummaryActivity(decoded)
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// RefreshedStats is the result of a refresh-token exchange plus the athlete's
// cumulative ride distance.
type RefreshedStats struct {
	AccessToken  string
	RefreshToken string
	YtdKm        float64
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	authUrl              = "https://www.strava.com/oauth/token"
	authorizeUrl         = "https://www.strava.com/oauth/authorize"
	athleteUrl           = "https://www.strava.com/api/v3/athlete"
	athleteStatsUrl      = "https://www.strava.com/api/v3/athletes/%d/stats"
	athleteActivitiesUrl = "https://www.strava.com/api/v3/athlete/activities"

	// PerPage is the page size requested from the activities listing.
	PerPage = 200
)

var Handler HTTPClient

func init() {
	Handler = &http.Client{Timeout: 30 * time.Second}
}

type Service interface {
	AuthorizationUrl(state string) string
	Authorize(accessCode string) (*AuthResp, error)
	RefreshAccessToken(refreshToken string) (*AuthResp, error)
	GetAthleteProfile(accessToken string) (*AthleteInfo, error)
	GetAthleteStats(accessToken string, athleteId int64) (*AthleteStats, error)
	GetActivitiesPage(accessToken string, page int) ([]SummaryActivity, error)
	RefreshAndGetYTD(refreshToken string, athleteId int64) (*RefreshedStats, error)
}

var _ Service = (*Client)(nil)

func NewStravaClient() *Client {
	return &Client{
		ClientId:     os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		RedirectUri:  os.Getenv("STRAVA_REDIRECT_URI"),
	}
}

func (c *Client) AuthorizationUrl(state string) string {
	return fmt.Sprintf("%s?client_id=%s&response_type=code&redirect_uri=%s&approval_prompt=auto&scope=activity:read_all&state=%s",
		authorizeUrl, c.ClientId, c.RedirectUri, state)
}

func (c *Client) Authorize(accessCode string) (*AuthResp, error) {
	return c.auth(c.getAuthPayload(accessCode, ""))
}

func (c *Client) RefreshAccessToken(refreshToken string) (*AuthResp, error) {
	return c.auth(c.getAuthPayload("", refreshToken))
}

func (c *Client) GetAthleteProfile(accessToken string) (*AthleteInfo, error) {
	var athlete AthleteInfo
	if err := c.get(athleteUrl, accessToken, &athlete); err != nil {
		slog.Error("error while fetching athlete profile")
		return nil, err
	}
	return &athlete, nil
}

func (c *Client) GetAthleteStats(accessToken string, athleteId int64) (*AthleteStats, error) {
	var stats AthleteStats
	url := fmt.Sprintf(athleteStatsUrl, athleteId)
	if err := c.get(url, accessToken, &stats); err != nil {
		slog.Error("error while fetching athlete stats", "athlete_id", athleteId)
		return nil, err
	}
	return &stats, nil
}

// GetActivitiesPage fetches one page of the athlete activities listing.
// Pages start at 1; an empty slice means the listing is exhausted.
func (c *Client) GetActivitiesPage(accessToken string, page int) ([]SummaryActivity, error) {
	url := fmt.Sprintf("%s?per_page=%d&page=%d", athleteActivitiesUrl, PerPage, page)
	var activities []SummaryActivity
	if err := c.get(url, accessToken, &activities); err != nil {
		slog.Error("error while fetching activities page", "page", page)
		return nil, err
	}
	return activities, nil
}

// RefreshAndGetYTD exchanges the refresh token for a fresh access token and
// reads the athlete's all-time ride distance, in km rounded to 2 decimals.
// Any provider failure propagates; callers decide whether it is fatal.
func (c *Client) RefreshAndGetYTD(refreshToken string, athleteId int64) (*RefreshedStats, error) {
	authData, err := c.RefreshAccessToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}
	stats, err := c.GetAthleteStats(authData.AccessToken, athleteId)
	if err != nil {
		return nil, fmt.Errorf("fetching athlete stats: %w", err)
	}
	return &RefreshedStats{
		AccessToken:  authData.AccessToken,
		RefreshToken: authData.RefreshToken,
		YtdKm:        utils.Round2(stats.AllRideTotals.Distance / 1000),
	}, nil
}

func (c *Client) get(url, accessToken string, out interface{}) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := Handler.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		utils.DebugResponse(resp)
		return fmt.Errorf("bad response from strava: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) auth(authPayload AuthReqBody) (*AuthResp, error) {
	url := fmt.Sprintf("%s?client_id=%s&client_secret=%s&code=%s&refresh_token=%s&grant_type=%s",
		authUrl, authPayload.ClientId, authPayload.ClientSecret, authPayload.Code, authPayload.RefreshToken, authPayload.GrantType)
	req, err := http.NewRequest("POST", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := Handler.Do(req)
	if err != nil {
		slog.Error("error while fetching auth request from strava")
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		utils.DebugResponse(resp)
		return nil, fmt.Errorf("bad response from strava: %s", resp.Status)
	}
	var authResp AuthResp
	if err = json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return nil, err
	}
	return &authResp, nil
}

func (c *Client) getAuthPayload(code string, refreshToken string) AuthReqBody {
	grantType := "authorization_code"
	if code == "" {
		grantType = "refresh_token"
	}
	return AuthReqBody{
		ClientId:     c.ClientId,
		ClientSecret: c.ClientSecret,
		RefreshToken: refreshToken,
		Code:         code,
		GrantType:    grantType,
	}
}
