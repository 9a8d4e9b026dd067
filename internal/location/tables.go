package location

var batchSentinels = []string{"us_latino", "usa_latino", "all_us_latino", "usa_es"}

// Cities with large Spanish-speaking populations, in sweep order.
var latinoHeavyLocations = []string{
	// California
	"Los Angeles, CA",
	"San Diego, CA",
	"San Jose, CA",
	"San Francisco, CA",
	"Oakland, CA",
	"Fresno, CA",
	"Sacramento, CA",
	"Riverside, CA",
	"Bakersfield, CA",
	"Santa Ana, CA",
	"Anaheim, CA",
	"Long Beach, CA",
	"Stockton, CA",
	"Chula Vista, CA",
	"Modesto, CA",
	// Texas
	"Houston, TX",
	"San Antonio, TX",
	"Dallas, TX",
	"Austin, TX",
	"Fort Worth, TX",
	"El Paso, TX",
	"McAllen, TX",
	"Brownsville, TX",
	"Laredo, TX",
	"Corpus Christi, TX",
	"San Jose, TX",
	"Irving, TX",
	"Arlington, TX",
	"Plano, TX",
	"Garland, TX",
	"Grand Prairie, TX",
	"Amarillo, TX",
	"Lubbock, TX",
	"Pasadena, TX",
	"Mesquite, TX",
	// Florida
	"Miami, FL",
	"Hialeah, FL",
	"Homestead, FL",
	"Fort Lauderdale, FL",
	"West Palm Beach, FL",
	"Orlando, FL",
	"Tampa, FL",
	"Jacksonville, FL",
	"Kissimmee, FL",
	// New York / New Jersey
	"New York, NY",
	"Queens, NY",
	"Bronx, NY",
	"Brooklyn, NY",
	"Jersey City, NJ",
	"Newark, NJ",
	"Paterson, NJ",
	"Elizabeth, NJ",
	"Union City, NJ",
	"Trenton, NJ",
	// Midwest
	"Chicago, IL",
	"Aurora, IL",
	"Cicero, IL",
	"Waukegan, IL",
	// Southwest
	"Phoenix, AZ",
	"Tucson, AZ",
	"Mesa, AZ",
	"Glendale, AZ",
	"Albuquerque, NM",
	"Las Cruces, NM",
	"Las Vegas, NV",
	"Henderson, NV",
	"Reno, NV",
	"Denver, CO",
	// Southeast
	"Atlanta, GA",
	"Doral, FL",
	"Cape Coral, FL",
	"Charlotte, NC",
	"Raleigh, NC",
	// Others
	"Washington, DC",
	"San Juan, PR",
	"Ponce, PR",
	"Bayamon, PR",
}

// A shorter sweep for directories whose per-city result pages are deep.
var latinoCoreLocations = []string{
	// California
	"Los Angeles, CA",
	"San Diego, CA",
	"San Jose, CA",
	"San Francisco, CA",
	"Fresno, CA",
	"Sacramento, CA",
	"Riverside, CA",
	"Bakersfield, CA",
	// Texas
	"Houston, TX",
	"San Antonio, TX",
	"Dallas, TX",
	"Austin, TX",
	"Fort Worth, TX",
	"El Paso, TX",
	"McAllen, TX",
	"Brownsville, TX",
	"Laredo, TX",
	// Florida
	"Miami, FL",
	"Orlando, FL",
	"Tampa, FL",
	"Jacksonville, FL",
	// New York / East Coast
	"New York, NY",
	"Jersey City, NJ",
	"Newark, NJ",
	// Midwest
	"Chicago, IL",
	// Southwest
	"Phoenix, AZ",
	"Tucson, AZ",
	"Albuquerque, NM",
	"Las Vegas, NV",
	"Denver, CO",
	// Southeast
	"Atlanta, GA",
	"Charlotte, NC",
	"Raleigh, NC",
	// Others
	"Washington, DC",
}

var stateFallbackCity = map[string]string{
	"AL": "Birmingham, AL",
	"AK": "Anchorage, AK",
	"AZ": "Phoenix, AZ",
	"AR": "Little Rock, AR",
	"CA": "Los Angeles, CA",
	"CO": "Denver, CO",
	"CT": "Bridgeport, CT",
	"DE": "Wilmington, DE",
	"FL": "Miami, FL",
	"GA": "Atlanta, GA",
	"HI": "Honolulu, HI",
	"ID": "Boise, ID",
	"IL": "Chicago, IL",
	"IN": "Indianapolis, IN",
	"IA": "Des Moines, IA",
	"KS": "Wichita, KS",
	"KY": "Louisville, KY",
	"LA": "New Orleans, LA",
	"ME": "Portland, ME",
	"MD": "Baltimore, MD",
	"MA": "Boston, MA",
	"MI": "Detroit, MI",
	"MN": "Minneapolis, MN",
	"MS": "Jackson, MS",
	"MO": "Kansas City, MO",
	"MT": "Billings, MT",
	"NE": "Omaha, NE",
	"NV": "Las Vegas, NV",
	"NH": "Manchester, NH",
	"NJ": "Newark, NJ",
	"NM": "Albuquerque, NM",
	"NY": "New York, NY",
	"NC": "Charlotte, NC",
	"ND": "Fargo, ND",
	"OH": "Columbus, OH",
	"OK": "Oklahoma City, OK",
	"OR": "Portland, OR",
	"PA": "Philadelphia, PA",
	"RI": "Providence, RI",
	"SC": "Charleston, SC",
	"SD": "Sioux Falls, SD",
	"TN": "Nashville, TN",
	"TX": "Houston, TX",
	"UT": "Salt Lake City, UT",
	"VT": "Burlington, VT",
	"VA": "Virginia Beach, VA",
	"WA": "Seattle, WA",
	"WV": "Charleston, WV",
	"WI": "Milwaukee, WI",
	"WY": "Cheyenne, WY",
	"DC": "Washington, DC",
	"PR": "San Juan, PR",
}
