// mock-oauth-proxy stands in for oauth-proxy during local development: it
// authenticates requests with Basic auth, injects the forwarded-identity
// headers, signs them with the shared HMAC secret, and reverse-proxies to
// the probe engine API.
package main

import (
	"crypto"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/18F/hmacauth"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"status-probe-engine/pkg/auth"
)

// User is one Basic-auth identity the proxy accepts.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Email        string `yaml:"email"`
}

// Config lists the users allowed through the proxy.
type Config struct {
	Users []User `yaml:"users"`
}

// Options contains command-line configuration for the proxy.
type Options struct {
	ConfigPath     string
	Port           string
	Upstream       string
	HMACSecretFile string
}

func NewOptions() *Options {
	opts := &Options{}
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to users config file")
	flag.StringVar(&opts.Port, "port", "8443", "Port to listen on")
	flag.StringVar(&opts.Upstream, "upstream", "http://localhost:8080", "Probe engine API URL")
	flag.StringVar(&opts.HMACSecretFile, "hmac-secret-file", "", "File containing HMAC secret")
	flag.Parse()
	return opts
}

func (o *Options) Validate() error {
	if o.ConfigPath == "" {
		return errors.New("config path is required (use --config flag)")
	}
	if _, err := os.Stat(o.ConfigPath); os.IsNotExist(err) {
		return errors.New("config file does not exist: " + o.ConfigPath)
	}
	if o.Upstream == "" {
		return errors.New("upstream URL is required (use --upstream flag)")
	}
	if o.HMACSecretFile == "" {
		return errors.New("hmac secret file is required (use --hmac-secret-file flag)")
	}
	if _, err := os.Stat(o.HMACSecretFile); os.IsNotExist(err) {
		return errors.New("hmac secret file does not exist: " + o.HMACSecretFile)
	}
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

func getHMACSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HMAC secret file: %w", err)
	}
	return []byte(strings.TrimSpace(string(data))), nil
}

func authenticateUser(username, password string, config *Config) (*User, error) {
	for _, user := range config.Users {
		if user.Username == username {
			if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
				return nil, fmt.Errorf("invalid password")
			}
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func proxyHandler(config *Config, upstreamURL *url.URL, hmacAuth hmacauth.HmacAuth, logger *logrus.Logger) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(upstreamURL)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)

		username, password, ok := req.BasicAuth()
		if !ok {
			return
		}
		user, err := authenticateUser(username, password, config)
		if err != nil {
			return
		}

		req.Header.Set("X-Forwarded-User", user.Username)
		req.Header.Set("X-Forwarded-Email", user.Email)
		req.Header.Set("X-Forwarded-Access-Token", "mock-access-token-"+user.Username)
		if req.Header.Get("Date") == "" {
			req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
		}
		if req.ContentLength > 0 {
			req.Header.Set("Content-Length", fmt.Sprintf("%d", req.ContentLength))
		}

		hmacAuth.SignRequest(req)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestLogger := logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		})

		// OPTIONS preflight requests pass through unauthenticated.
		if r.Method == http.MethodOptions {
			proxy.ServeHTTP(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			requestLogger.Warn("No BasicAuth credentials provided")
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := authenticateUser(username, password, config)
		if err != nil {
			requestLogger.WithFields(logrus.Fields{
				"username": username,
				"error":    err,
			}).Warn("Authentication failed")
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		requestLogger.WithField("username", user.Username).Info("Authentication successful, forwarding to upstream")
		proxy.ServeHTTP(w, r)
	})
}

func setupLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

func main() {
	logger := setupLogger()
	opts := NewOptions()

	if err := opts.Validate(); err != nil {
		logger.WithField("error", err).Fatal("Invalid options")
	}

	config, err := loadConfig(opts.ConfigPath)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to load config")
	}

	hmacSecret, err := getHMACSecret(opts.HMACSecretFile)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to load HMAC secret")
	}

	upstreamURL, err := url.Parse(opts.Upstream)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to parse upstream URL")
	}

	hmacAuth := hmacauth.NewHmacAuth(crypto.SHA256, hmacSecret, auth.GAPSignatureHeader, auth.OAuthSignatureHeaders)

	server := &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           proxyHandler(config, upstreamURL, hmacAuth, logger),
		ReadHeaderTimeout: 30 * time.Second,
	}

	logger.Infof("Mock oauth-proxy listening on :%s, forwarding to %s", opts.Port, opts.Upstream)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithField("error", err).Fatal("Proxy failed")
	}
}
