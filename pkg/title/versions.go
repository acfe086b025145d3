package title

// systemMenuVersions maps the System Menu's TMD title version to the version
// string the console reports. vWii builds overlap 4.3 but carry their own
// version numbers.
var systemMenuVersions = map[uint16]string{
	33:  "1.0U",
	64:  "1.0J",
	66:  "1.0E",
	97:  "2.0U",
	128: "2.0J",
	130: "2.0E",
	162: "2.1E",
	192: "2.2J",
	193: "2.2U",
	194: "2.2E",
	224: "3.0J",
	225: "3.0U",
	226: "3.0E",
	256: "3.1J",
	257: "3.1U",
	258: "3.1E",
	288: "3.2J",
	289: "3.2U",
	290: "3.2E",
	326: "3.3K",
	352: "3.3J",
	353: "3.3U",
	354: "3.3E",
	384: "3.4J",
	385: "3.4U",
	386: "3.4E",
	390: "3.5K",
	416: "4.0J",
	417: "4.0U",
	418: "4.0E",
	448: "4.1J",
	449: "4.1U",
	450: "4.1E",
	454: "4.1K",
	480: "4.2J",
	481: "4.2U",
	482: "4.2E",
	486: "4.2K",
	512: "4.3J",
	513: "4.3U",
	514: "4.3E",
	518: "4.3K",
	544: "4.3J (vWii)",
	545: "4.3U (vWii)",
	546: "4.3E (vWii)",
	608: "4.3J (vWii)",
	609: "4.3U (vWii)",
	610: "4.3E (vWii)",
}

// SystemMenuVersion translates a System Menu TMD title version into the
// familiar version string, or "Unknown" for versions not in the table.
func SystemMenuVersion(titleVersion uint16) string {
	if v, ok := systemMenuVersions[titleVersion]; ok {
		return v
	}
	return "Unknown"
}
