package flags

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

type Flags struct {
	ElasticURL       string `cli:"connect" cliAlt:"c" env:"ELASTIC_URL" usage:"ElasticSearch URL"`
	ElasticUser      string `cli:"user" env:"ELASTIC_USER" usage:"ElasticSearch Username"`
	ElasticPass      string `cli:"pass" env:"ELASTIC_PASS" usage:"ElasticSearch Password"`
	ElasticVerifySSL bool   `cli:"verifySSL" usage:"Verify SSL certificate"`
	ElasticCACert    string `cli:"cacert" usage:"Path to a CA certificate bundle to verify the server"`
	ElasticClientCrt string `cli:"clientcert" usage:"Path to a client certificate for mutual TLS"`
	ElasticClientKey string `cli:"clientkey" usage:"Path to the private key of the client certificate"`
	ElasticVersion   int    `cli:"version" usage:"Major version of the ElasticSearch cluster [7|8|9]"`
	Index            string `cli:"index" cliAlt:"i" usage:"ElasticSearch Index (or Index Prefix), comma separated list, _all for every index"`
	RAWQuery         string `cli:"rawquery" cliAlt:"r" usage:"ElasticSearch raw query string"`
	QueryFile        string `cli:"queryfile" usage:"Read the query from a JSON or YAML file"`
	Query            string `cli:"query" cliAlt:"q" usage:"Lucene query same that is used in Kibana search input"`
	OutFormat        string `cli:"outformat" cliAlt:"f" usage:"Format of the output data. [json|csv]"`
	Outfile          string `cli:"outfile" cliAlt:"o" usage:"Path to output file, - for stdout"`
	StartDate        string `cli:"start" cliAlt:"s" usage:"Start date for included documents"`
	EndDate          string `cli:"end" cliAlt:"e" usage:"End date for included documents"`
	ScrollSize       int    `cli:"size" usage:"Number of documents that will be returned per shard"`
	MaxResults       int    `cli:"max" usage:"Maximum number of documents to export, 0 for all"`
	ScrollTTL        string `cli:"scrollttl" usage:"How long the cluster keeps a scroll context alive between pages, e.g. 30m"`
	Timefield        string `cli:"timefield" usage:"Field name to use for start and end date query"`
	Fieldlist        string `cli:"fields" usage:"Fields to include in export as comma separated list, _all for every field"`
	Fields           []string
	Sort             string `cli:"sort" usage:"Sort as comma separated list of field:asc or field:desc"`
	MetaFields       string `cli:"metafields" usage:"Comma separated list of hit metadata to include [_id,_index,_score]"`
	Delimiter        string `cli:"delimiter" cliAlt:"d" usage:"Delimiter of the CSV output"`
	KibanaNested     bool   `cli:"kibananested" usage:"Join values of arrays into one column instead of one column per array index"`
	PathDelimiter    string `cli:"pathdelimiter" usage:"Separator for the column names of nested fields"`
	Retries          int    `cli:"retries" usage:"Retries of a request after a connection error"`
	RetryDelay       string `cli:"retrydelay" usage:"Wait time between retries, e.g. 60s"`
	Progress         bool   `cli:"progress" usage:"Show progress bars"`
	MetricsFile      string `cli:"metricsfile" usage:"Write run metrics in Prometheus text format to this file"`
	Debug            bool   `cli:"debug" usage:"Log the search request and debug output"`
	Trace            bool   `cli:"trace" usage:"Log every request sent to ElasticSearch (version 7 only)"`
}

// Default returns the configuration used when no flag overrides a value.
func Default() Flags {
	return Flags{
		ElasticURL:       "http://localhost:9200",
		ElasticVerifySSL: true,
		ElasticVersion:   8,
		Index:            "logs-*",
		Query:            "*",
		OutFormat:        FormatCSV,
		Outfile:          "output.csv",
		ScrollSize:       1000,
		ScrollTTL:        "30m",
		Timefield:        "@timestamp",
		Fieldlist:        "_all",
		Delimiter:        ",",
		PathDelimiter:    ".",
		Retries:          3,
		RetryDelay:       "60s",
		Progress:         true,
	}
}
