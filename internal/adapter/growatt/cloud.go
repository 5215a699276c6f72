package growatt

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"go.uber.org/zap"
)

const (
	cloudTimeout   = 30 * time.Second
	cloudUserAgent = "Dalvik/2.1.0 (Linux; U; Android 12; growattcharger)"

	acChargeSettingType = "spa_ac_charge_time_period"
)

// CloudClient talks to the ShinePhone server API. The session lives in a
// cookie jar, so Login must be called before any other method.
type CloudClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	userID string
}

var _ port.InverterClient = (*CloudClient)(nil)

func NewCloudClient(serverURL string, logger *zap.Logger) (*CloudClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(serverURL, "/") {
		serverURL += "/"
	}
	return &CloudClient{
		baseURL:    serverURL,
		httpClient: &http.Client{Timeout: cloudTimeout, Jar: jar},
		logger:     logger,
	}, nil
}

// HashPassword is the vendor's password digest: MD5 hex where every '0' at
// an even index is replaced by 'c'.
func HashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	hash := []byte(hex.EncodeToString(sum[:]))
	for i := 0; i < len(hash); i += 2 {
		if hash[i] == '0' {
			hash[i] = 'c'
		}
	}
	return string(hash)
}

// flexString accepts JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

func (f flexString) float() (float64, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(string(f)), "%"))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

type loginResponse struct {
	Back struct {
		Success bool   `json:"success"`
		Msg     string `json:"msg"`
		User    struct {
			ID flexString `json:"id"`
		} `json:"user"`
	} `json:"back"`
}

type plantListResponse struct {
	Back struct {
		Data []struct {
			PlantID   flexString `json:"plantId"`
			PlantName string     `json:"plantName"`
		} `json:"data"`
	} `json:"back"`
}

type storageEntry struct {
	DeviceSN     string     `json:"deviceSn"`
	Capacity     flexString `json:"capacity"`
	EChargeToday flexString `json:"eChargeToday"`
}

type plantInfoResponse struct {
	TodayEnergy flexString     `json:"todayEnergy"`
	StorageList []storageEntry `json:"storageList"`
	DeviceList  []struct {
		DeviceSN string `json:"deviceSn"`
	} `json:"deviceList"`
}

type settingResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

func (c *CloudClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet && len(form) > 0 {
		endpoint += "?" + form.Encode()
	} else if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: build %s request: %s", domain.ErrVendorAPI, path, err)
	}
	req.Header.Set("User-Agent", cloudUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", domain.ErrVendorAPI, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: %s: status=%d body=%s", domain.ErrVendorAPI, path, resp.StatusCode, string(payload))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %s", domain.ErrVendorAPI, path, err)
	}
	return nil
}

func (c *CloudClient) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: missing credentials", domain.ErrVendorAuth)
	}
	var resp loginResponse
	form := url.Values{"userName": {username}, "password": {HashPassword(password)}}
	if err := c.do(ctx, http.MethodPost, "newTwoLoginAPI.do", form, &resp); err != nil {
		return err
	}
	if !resp.Back.Success {
		msg := resp.Back.Msg
		if msg == "" {
			msg = "no error message provided"
		}
		return fmt.Errorf("%w: %s", domain.ErrVendorAuth, msg)
	}

	c.mu.Lock()
	c.userID = string(resp.Back.User.ID)
	c.mu.Unlock()
	c.logger.Debug("logged in to vendor cloud", zap.String("user_id", string(resp.Back.User.ID)))
	return nil
}

func (c *CloudClient) user() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == "" {
		return "", fmt.Errorf("%w: not logged in", domain.ErrVendorAuth)
	}
	return c.userID, nil
}

func (c *CloudClient) plantInfo(ctx context.Context, plantID string) (*plantInfoResponse, error) {
	if _, err := c.user(); err != nil {
		return nil, err
	}
	var resp plantInfoResponse
	query := url.Values{"op": {"getAllDeviceList"}, "plantId": {plantID}, "pageNum": {"1"}, "pageSize": {"1"}}
	if err := c.do(ctx, http.MethodGet, "newTwoPlantAPI.do", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveDevice fills in the first plant and its first storage (or inverter)
// device when plantID or deviceSN are empty.
func (c *CloudClient) ResolveDevice(ctx context.Context, plantID, deviceSN string) (domain.InverterDevice, error) {
	userID, err := c.user()
	if err != nil {
		return domain.InverterDevice{}, err
	}
	if plantID == "" {
		var plants plantListResponse
		if err := c.do(ctx, http.MethodGet, "PlantListAPI.do", url.Values{"userId": {userID}}, &plants); err != nil {
			return domain.InverterDevice{}, err
		}
		if len(plants.Back.Data) == 0 {
			return domain.InverterDevice{}, fmt.Errorf("%w: no plant data returned", domain.ErrVendorDevice)
		}
		plantID = string(plants.Back.Data[0].PlantID)
	}

	if deviceSN == "" {
		info, err := c.plantInfo(ctx, plantID)
		if err != nil {
			return domain.InverterDevice{}, err
		}
		switch {
		case len(info.StorageList) > 0:
			deviceSN = info.StorageList[0].DeviceSN
		case len(info.DeviceList) > 0:
			deviceSN = info.DeviceList[0].DeviceSN
		}
		if deviceSN == "" {
			return domain.InverterDevice{}, fmt.Errorf("%w: no valid inverter or storage device found in plant %s", domain.ErrVendorDevice, plantID)
		}
	}
	c.logger.Info("resolved inverter device", zap.String("plant_id", plantID), zap.String("device_sn", deviceSN))
	return domain.InverterDevice{PlantID: plantID, DeviceSN: deviceSN}, nil
}

func findStorage(info *plantInfoResponse, deviceSN string) *storageEntry {
	for i := range info.StorageList {
		if strings.EqualFold(info.StorageList[i].DeviceSN, deviceSN) {
			return &info.StorageList[i]
		}
	}
	return nil
}

// ReadSOC reads the storage "capacity" field of the device, e.g. "57%".
func (c *CloudClient) ReadSOC(ctx context.Context, dev domain.InverterDevice) (int, error) {
	info, err := c.plantInfo(ctx, dev.PlantID)
	if err != nil {
		return 0, err
	}
	st := findStorage(info, dev.DeviceSN)
	if st == nil || st.Capacity == "" {
		return 0, fmt.Errorf("%w: could not find battery percentage data for device %s", domain.ErrVendorDevice, dev.DeviceSN)
	}
	soc, err := st.Capacity.float()
	if err != nil {
		return 0, fmt.Errorf("%w: invalid battery percentage %q", domain.ErrVendorAPI, st.Capacity)
	}
	return int(soc), nil
}

func (c *CloudClient) EnergyToday(ctx context.Context, dev domain.InverterDevice) (domain.EnergyToday, error) {
	info, err := c.plantInfo(ctx, dev.PlantID)
	if err != nil {
		return domain.EnergyToday{}, err
	}
	generation, err := info.TodayEnergy.float()
	if err != nil {
		return domain.EnergyToday{}, fmt.Errorf("%w: invalid todayEnergy %q", domain.ErrVendorAPI, info.TodayEnergy)
	}
	st := findStorage(info, dev.DeviceSN)
	if st == nil && len(info.StorageList) > 0 {
		st = &info.StorageList[0]
	}
	charge := 0.0
	if st != nil {
		if charge, err = st.EChargeToday.float(); err != nil {
			return domain.EnergyToday{}, fmt.Errorf("%w: invalid eChargeToday %q", domain.ErrVendorAPI, st.EChargeToday)
		}
	}
	return domain.EnergyToday{GenerationWh: generation * 1000, ChargeWh: charge * 1000}, nil
}

// WriteSchedule sets slot 1 of the AC charge schedule and disables slots 2
// and 3.
func (c *CloudClient) WriteSchedule(ctx context.Context, dev domain.InverterDevice, s domain.ChargeSchedule) error {
	if err := ValidateSchedule(s); err != nil {
		return err
	}
	if _, err := c.user(); err != nil {
		return err
	}
	form := url.Values{
		"action":    {"spaSet"},
		"serialNum": {dev.DeviceSN},
		"type":      {acChargeSettingType},
	}
	params := []string{
		strconv.Itoa(s.ChargeRatePct),
		strconv.Itoa(s.TargetSOCPct),
		fmt.Sprintf("%02d", s.Start.Hour), fmt.Sprintf("%02d", s.Start.Minute),
		fmt.Sprintf("%02d", s.End.Hour), fmt.Sprintf("%02d", s.End.Minute),
		"1",
		"00", "00", "00", "00", "0",
		"00", "00", "00", "00", "0",
	}
	for i, p := range params {
		form.Set(fmt.Sprintf("param%d", i+1), p)
	}

	var resp settingResponse
	if err := c.do(ctx, http.MethodPost, "newTcpsetAPI.do", form, &resp); err != nil {
		return err
	}
	if !resp.Success {
		msg := resp.Msg
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("%w: failed to update settings: %s", domain.ErrVendorAPI, msg)
	}
	return nil
}
