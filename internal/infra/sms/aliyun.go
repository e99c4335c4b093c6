package sms

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"notifyhub/internal/common"
	"notifyhub/internal/domain/notification"
)

const (
	defaultEndpoint = "https://dysmsapi.aliyuncs.com/"
	defaultRegion   = "cn-hangzhou"
	apiVersion      = "2017-05-25"
)

// AliyunConfig holds Dysms credentials and the commit warning template.
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	TemplateCode    string
	Endpoint        string
	Region          string
}

// AliyunGateway sends SMS through the Aliyun Dysms SendSms RPC API.
type AliyunGateway struct {
	cfg        AliyunConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewAliyunGateway creates a gateway with a 10 second HTTP timeout.
func NewAliyunGateway(cfg AliyunConfig) *AliyunGateway {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	return &AliyunGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// SendProjectCommitWarning texts the commit warning template to phone.
func (g *AliyunGateway) SendProjectCommitWarning(ctx context.Context, phone string, p notification.SMSParams) error {
	templateParam, err := json.Marshal(map[string]string{
		"project": p.ProjectTitle,
		"days":    strconv.Itoa(p.DaysWithoutCommits),
		"level":   p.WarningLevel,
	})
	if err != nil {
		return fmt.Errorf("marshaling sms template params: %w", err)
	}

	params := url.Values{}
	params.Set("AccessKeyId", g.cfg.AccessKeyID)
	params.Set("Action", "SendSms")
	params.Set("Format", "JSON")
	params.Set("PhoneNumbers", phone)
	params.Set("RegionId", g.cfg.Region)
	params.Set("SignName", g.cfg.SignName)
	params.Set("SignatureMethod", "HMAC-SHA1")
	params.Set("SignatureNonce", nonce())
	params.Set("SignatureVersion", "1.0")
	params.Set("TemplateCode", g.cfg.TemplateCode)
	params.Set("TemplateParam", string(templateParam))
	params.Set("Timestamp", g.now().UTC().Format("2006-01-02T15:04:05Z"))
	params.Set("Version", apiVersion)
	params.Set("Signature", sign(http.MethodGet, params, g.cfg.AccessKeySecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var out struct {
		Code      string `json:"Code"`
		Message   string `json:"Message"`
		BizID     string `json:"BizId"`
		RequestID string `json:"RequestId"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return common.NewProviderError("aliyun-sms", fmt.Sprintf("status %d: unparseable response", resp.StatusCode))
	}
	if resp.StatusCode >= 400 || out.Code != "OK" {
		return common.NewProviderError("aliyun-sms", fmt.Sprintf("%s: %s", out.Code, out.Message))
	}
	return nil
}

// sign computes the RPC signature over every parameter except Signature.
func sign(method string, params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "Signature" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = percentEncode(k) + "=" + percentEncode(params.Get(k))
	}
	stringToSign := method + "&" + percentEncode("/") + "&" + percentEncode(strings.Join(pairs, "&"))

	mac := hmac.New(sha1.New, []byte(secret+"&"))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode is RFC 3986 encoding as the RPC signature requires.
func percentEncode(s string) string {
	s = url.QueryEscape(s)
	s = strings.ReplaceAll(s, "+", "%20")
	s = strings.ReplaceAll(s, "*", "%2A")
	return strings.ReplaceAll(s, "%7E", "~")
}

func nonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
