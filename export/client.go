package export

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	elasticv7import "github.com/olivere/elastic/v7"
	"go.uber.org/zap"

	"github.com/pteich/esxport/elastic"
	elasticv7 "github.com/pteich/esxport/elastic/v7"
	elasticv8 "github.com/pteich/esxport/elastic/v8"
	elasticv9 "github.com/pteich/esxport/elastic/v9"
	"github.com/pteich/esxport/flags"
)

func createClient(conf *flags.Flags, logger *zap.Logger) (elastic.Client, error) {
	tlsCfg, err := tlsConfig(conf)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		TLSClientConfig: tlsCfg,
	}
	httpClient := &http.Client{Transport: tr}

	logger.Debug("connecting to elasticsearch",
		zap.String("url", conf.ElasticURL),
		zap.Int("version", conf.ElasticVersion),
	)

	switch conf.ElasticVersion {
	case 7:
		esLogger := logger.Named("olivere")
		esOpts := []elasticv7import.ClientOptionFunc{
			elasticv7.SetHttpClient(httpClient),
			elasticv7.SetURL(conf.ElasticURL),
			elasticv7.SetSniff(false),
			elasticv7.SetHealthcheckInterval(60 * time.Second),
			elasticv7.SetErrorLog(zap.NewStdLog(esLogger)),
		}

		if conf.Trace {
			esOpts = append(esOpts, elasticv7.SetTraceLog(zap.NewStdLog(esLogger)))
		}

		if conf.ElasticUser != "" && conf.ElasticPass != "" {
			esOpts = append(esOpts, elasticv7.SetBasicAuth(conf.ElasticUser, conf.ElasticPass))
		}

		client, err := elasticv7.NewClient(esOpts)
		if err != nil {
			return nil, err
		}
		return client, nil

	case 8:
		cfg := elasticv8.NewConfig(conf.ElasticURL, conf.ElasticUser, conf.ElasticPass, httpClient)
		client, err := elasticv8.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil

	case 9:
		cfg := elasticv9.NewConfig(conf.ElasticURL, conf.ElasticUser, conf.ElasticPass, httpClient)
		client, err := elasticv9.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported ElasticSearch version %d", conf.ElasticVersion)
	}
}

func tlsConfig(conf *flags.Flags) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: !conf.ElasticVerifySSL,
	}

	if conf.ElasticCACert != "" {
		pem, err := os.ReadFile(conf.ElasticCACert)
		if err != nil {
			return nil, fmt.Errorf("read ca certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", conf.ElasticCACert)
		}
		tlsCfg.RootCAs = pool
	}

	if conf.ElasticClientCrt != "" && conf.ElasticClientKey != "" {
		cert, err := tls.LoadX509KeyPair(conf.ElasticClientCrt, conf.ElasticClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}
