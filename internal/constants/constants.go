package constants

const USER_AGENT = "scriptcache/1.0 (+https://github.com/Amund211/scriptcache)"
