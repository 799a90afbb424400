package synonym

// builtinAliases 内置技能别名表: 标准名 -> 常见别名。
// 匹配不区分大小写, 条目维护时保持标准名为业界通用写法。
var builtinAliases = map[string][]string{
	"Kubernetes":    {"k8s", "kube"},
	"JavaScript":    {"js", "ecmascript", "es6"},
	"TypeScript":    {"ts"},
	"PostgreSQL":    {"postgres", "psql", "postgre"},
	"MySQL":         {"my-sql"},
	"MongoDB":       {"mongo"},
	"Elasticsearch": {"elastic search", "es", "elastic"},
	"RabbitMQ":      {"rabbit mq", "amqp"},
	"Kafka":         {"apache kafka"},
	"Redis":         {},
	"AWS":           {"amazon web services"},
	"GCP":           {"google cloud", "google cloud platform"},
	"Azure":         {"microsoft azure"},
	"Docker":        {"containerization"},
	"Terraform":     {"tf"},
	"CI/CD":         {"cicd", "ci cd", "continuous integration", "continuous delivery"},
	"Go":            {"golang"},
	"Python":        {"python3", "py"},
	"Java":          {},
	"C++":           {"cpp", "cplusplus"},
	"C#":            {"csharp", "c sharp", ".net c#"},
	"Ruby on Rails": {"rails", "ror"},
	"Node.js":       {"node", "nodejs"},
	"React":         {"reactjs", "react.js"},
	"Vue":           {"vuejs", "vue.js"},
	"Angular":       {"angularjs", "angular.js"},
	"Spring Boot":   {"springboot", "spring-boot"},
	"Spring":        {"spring framework"},
	"gRPC":          {"grpc"},
	"GraphQL":       {"graph ql"},
	"REST":          {"restful", "rest api", "restful api"},
	"Machine Learning": {"ml"},
	"Deep Learning":    {"dl"},
	"Natural Language Processing": {"nlp"},
	"Computer Vision":             {"cv"},
	"TensorFlow":                  {"tf2", "tensor flow"},
	"PyTorch":                     {"torch"},
	"scikit-learn":                {"sklearn", "scikit learn"},
	"Pandas":                      {},
	"NumPy":                       {"numpy"},
	"SQL":                         {"structured query language"},
	"NoSQL":                       {"no-sql", "no sql"},
	"Linux":                       {"gnu/linux"},
	"Git":                         {"github", "gitlab"},
	"Jenkins":                     {},
	"Ansible":                     {},
	"Prometheus":                  {},
	"Grafana":                     {},
	"Microservices":               {"micro-services", "micro services", "microservice"},
	"Distributed Systems":         {"distributed computing"},
	"HTML":                        {"html5"},
	"CSS":                         {"css3"},
	"Objective-C":                 {"objc", "objective c"},
	"Swift":                       {},
	"Kotlin":                      {},
	"Scala":                       {},
	"Rust":                        {},
	"PHP":                         {},
	"Unit Testing":                {"unit tests", "unittest"},
	"Agile":                       {"scrum", "agile methodologies"},
}
