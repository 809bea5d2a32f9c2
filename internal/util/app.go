package util

func GetAppName() string {
	return "AutoSign"
}
