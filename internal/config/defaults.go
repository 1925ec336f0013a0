package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel  = "warn"
	DefaultJSONLog   = false
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

	DefaultBrowserHeadless   = true
	DefaultNavigationTimeout = 60 * time.Second
	DefaultNetworkIdleQuiet  = 500 * time.Millisecond
	DefaultCaptureWindow     = 10 * time.Second
	DefaultTableWaitTimeout  = 30 * time.Second

	DefaultSessionFile = "auth_state.json"
	DefaultQRCodePath  = "qrcode.png"
	DefaultLoginURL    = "https://docs.qq.com"
	DefaultQRSelector  = "img[alt='Scan QR code']"

	DefaultTargetEndpoint = "api/get_sheet_data"
	DefaultTargetMethod   = "POST"
	DefaultRecordsPath    = "data.records"

	DefaultWikiURL        = "https://zh.wikipedia.org/wiki/%E5%90%84%E5%9B%BD%E4%BA%BA%E5%8F%A3%E5%88%97%E8%A1%A8"
	DefaultWikiSelector   = "(//table[contains(@class, 'wikitable')])[1]"
	DefaultOutputDir      = "docs"
	DefaultOutputFile     = "population_data.csv"
	DefaultPageSourceDump = "page_source.html"

	DefaultShellAddr     = "127.0.0.1:8765"
	DefaultHistoryDB     = ".tablecrawl/history.db"
	DefaultWatchEvery    = time.Hour
	MinWatchEvery        = 10 * time.Second
	DefaultLogMaxSizeMB  = 25
	DefaultLogMaxBackups = 10
	DefaultLogMaxAgeDays = 14
)
